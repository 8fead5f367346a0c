package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Message is a single role-tagged text message sent to the model. Role is one
// of "system", "user" or "assistant"; system instructions are usually carried
// in Request.Instructions instead.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling carries per-request generation options. Two profiles are used in
// practice: a near-deterministic one for classification-style structured
// output (low temperature, fixed seed, ForceJSON) and a conversational one
// for Q&A answers.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int64   `json:"max_tokens"`
	// Seed pins the provider's sampler for reproducible structured output.
	// Nil leaves the provider default.
	Seed *int64 `json:"seed,omitempty"`
	// ForceJSON requests the provider's structured-output mode: the generated
	// text must parse as a well-formed JSON object.
	ForceJSON bool `json:"force_json,omitempty"`
}

// Request captures the normalized model input produced by the orchestrator.
type Request struct {
	Instructions string    `json:"instructions"` // System-level instructions
	Messages     []Message `json:"messages"`     // Conversation turns, oldest first
	Sampling     Sampling  `json:"sampling"`
	Stream       bool      `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. In streaming
// mode providers emit partial text deltas followed by a final non-partial
// response carrying the full text.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "local", etc.
}

// Model is the minimal interface required to drive generation. Generate
// returns a response channel and an error channel; both are closed when the
// call completes. Implementations must honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call into the final full text. It is the
// blocking-mode convenience used by non-streaming callers.
func Collect(respCh <-chan Response, errCh <-chan error) (string, error) {
	var final string
	var sb strings.Builder
	for resp := range respCh {
		if resp.Partial {
			sb.WriteString(resp.Text)
			continue
		}
		final = resp.Text
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	if final == "" {
		final = sb.String()
	}
	return strings.TrimSpace(final), nil
}

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// keyed by the final message content; unmatched prompts get a generic echo.
// It records every request it serves so tests can assert on call counts and
// rendered prompts. Safe for concurrent use, since background memory tasks
// share the model with the request path.
type MockModel struct {
	info      Info
	responses map[string]string

	mu       sync.Mutex
	requests []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Requests returns a copy of the requests served so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		input := req.Messages[len(req.Messages)-1].Content
		full := m.responses[input]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
