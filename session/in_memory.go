package session

import (
	"sync"
	"time"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/internal/util"
	"github.com/rayied/cora/logging"
)

// DefaultTimeout is how long a session may sit idle before it is evicted.
const DefaultTimeout = 30 * time.Minute

// Options configures the in-memory session store.
type Options struct {
	// Timeout is the idle duration after which a session expires.
	Timeout time.Duration
	// Now supplies the current time; override in tests to advance the clock.
	Now func() time.Time
	// Logger receives eviction records. Defaults to NoOp.
	Logger logging.Logger
}

// InMemoryStore is a volatile core.SessionStore keeping sessions in a process
// local map. Expiry is checked lazily on every lookup: expired entries are
// swept before a session is resolved, so no background timer runs and idle
// sessions consume nothing but their map slot.
//
// The map mutex guards only the session table; each Session serializes its
// own mutations, so unrelated sessions never contend with each other.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	timeout  time.Duration
	now      func() time.Time
	logger   logging.Logger
}

// Compile-time interface implementation check.
var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Timeout: DefaultTimeout,
		Now:     time.Now,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// GetOrCreate returns the non-expired session for id, or creates a fresh one
// with a newly generated identifier. An expired or unknown id silently yields
// a brand-new session; callers never see an "expired" error.
func (s *InMemoryStore) GetOrCreate(id string) *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpiredLocked(now)

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}

	sess := core.NewSession(util.NewID(), now)
	s.sessions[sess.ID] = sess
	return sess
}

// Lookup returns the non-expired session for id without creating one.
func (s *InMemoryStore) Lookup(id string) (*core.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(s.now())
	sess, ok := s.sessions[id]
	return sess, ok
}

// ActiveCount returns the number of live sessions after sweeping expired ones.
func (s *InMemoryStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(s.now())
	return len(s.sessions)
}

// evictExpiredLocked removes every session idle longer than the timeout.
// Caller must hold the write lock.
func (s *InMemoryStore) evictExpiredLocked(now time.Time) {
	for id, sess := range s.sessions {
		if sess.IsExpired(s.timeout, now) {
			delete(s.sessions, id)
			s.logger.Info("Evicted expired session", "session_id", id)
		}
	}
}
