package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role identifies the author of a conversation turn. Exactly two variants
// exist; anything else is rejected by the session store.
type Role string

const (
	// RoleUser marks a turn authored by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known variants.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Turn is a single message within a session's history. Turns are append-only;
// they are never mutated or deleted individually. RelativeTime is a label
// such as "T+5m" derived from elapsed time since session creation, giving the
// model a cheap sense of conversational pacing.
type Turn struct {
	Role         Role           `json:"role"`
	Content      string         `json:"content"`
	Timestamp    time.Time      `json:"timestamp"`
	RelativeTime string         `json:"relative_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Session is a conversational container tracking an ordered turn history plus
// derived memory: a rolling summary and an entity table. It is safe for
// concurrent access; the embedded mutex serializes the in-flight request
// against the background memory task for the same session id.
//
// Contract:
//   - LastActivity >= CreatedAt at all times
//   - A session with no turns has an empty summary and empty entities
//   - Turns returns a defensive copy to avoid external mutation
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	turns    []Turn
	summary  string
	entities map[string]any

	mu sync.Mutex
}

// NewSession creates an empty session with the given id, stamping creation
// and activity with now.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		entities:     map[string]any{},
	}
}

// AddTurn appends a turn and updates the activity timestamp. The relative
// time label is computed from elapsed whole minutes since session creation,
// so it is monotonically non-decreasing across appends.
func (s *Session) AddTurn(role Role, content string, metadata map[string]any, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	minutes := int(now.Sub(s.CreatedAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	s.turns = append(s.turns, Turn{
		Role:         role,
		Content:      content,
		Timestamp:    now,
		RelativeTime: fmt.Sprintf("T+%dm", minutes),
		Metadata:     metadata,
	})
	s.LastActivity = now
}

// Turns returns a copy of the full turn history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// TurnCount returns the number of stored turns.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// RecentTurns returns at most 2*maxPairs of the most recent turns, oldest
// first. This is a sliding window: the latest exchange is always included
// even when older context is dropped.
func (s *Session) RecentTurns(maxPairs int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked(maxPairs)
}

func (s *Session) recentLocked(maxPairs int) []Turn {
	n := 2 * maxPairs
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	window := make([]Turn, len(s.turns)-start)
	copy(window, s.turns[start:])
	return window
}

// LastUserMessage returns the content of the most recent user turn, or false
// if the session has none.
func (s *Session) LastUserMessage() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleUser {
			return s.turns[i].Content, true
		}
	}
	return "", false
}

// Summary returns the current rolling summary (may be empty).
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// SetSummary replaces the rolling summary wholesale. Summaries are a rolling
// compression, not an append-only log, so history stays bounded in
// prompt-token cost.
func (s *Session) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// Entities returns a copy of the extracted entity table.
func (s *Session) Entities() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.entities))
	for k, v := range s.entities {
		out[k] = v
	}
	return out
}

// MergeEntities merges the delta into the entity table, last write wins.
func (s *Session) MergeEntities(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.entities[k] = v
	}
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastActivity) > timeout
}

// RenderContext composes the session memory into a single context string for
// the model, in order: rolling summary (if any), entity table (if any), then
// the recent-turn window with role labels and relative-time tags. Returns an
// empty string when the session has no history and no memory.
func (s *Session) RenderContext(maxPairs int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	if s.summary != "" {
		parts = append(parts, "PREVIOUS SUMMARY:\n"+s.summary+"\n")
	}
	if len(s.entities) > 0 {
		parts = append(parts, "KNOWN DETAILS:")
		for _, k := range sortedKeys(s.entities) {
			parts = append(parts, fmt.Sprintf("- %s: %v", k, s.entities[k]))
		}
		parts = append(parts, "")
	}

	history := s.recentLocked(maxPairs)
	if len(history) == 0 {
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "RECENT CONVERSATION:")
	for _, turn := range history {
		label := "Customer"
		if turn.Role == RoleAssistant {
			label = "You"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", turn.RelativeTime, label, turn.Content))
	}
	return strings.Join(parts, "\n")
}

// SessionStore owns session lifecycle: lazy creation, idle expiry and lookup.
// Expiry is checked on access rather than by a background timer, so idle
// sessions consume no eviction-thread resources.
type SessionStore interface {
	// GetOrCreate returns the non-expired session for id, or a fresh session
	// with a newly generated identifier when id is empty, unknown or expired.
	// Expired session ids silently yield a brand-new session; clients never
	// need special-case expired-session handling.
	GetOrCreate(id string) *Session

	// ActiveCount returns the number of live (non-expired) sessions.
	ActiveCount() int
}
