package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/model"
)

// failingModel always errors, for verifying that memory tasks swallow
// failures instead of surfacing them.
type failingModel struct{}

func (failingModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- fmt.Errorf("model down")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (failingModel) Info() model.Info { return model.Info{Name: "failing", Provider: "test"} }

func newSessionWithTurns(turns ...string) *core.Session {
	now := time.Now()
	sess := core.NewSession("test-session", now)
	for i, content := range turns {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		sess.AddTurn(role, content, nil, now)
	}
	return sess
}

func TestCompressorExtractsEntities(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.AddResponse(
		"My name is Sara and I have a Pixel 8",
		`{"name": "Sara", "phone_model": "Pixel 8"}`,
	)
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("My name is Sara and I have a Pixel 8")
	c.Submit(sess)
	c.Flush()

	entities := sess.Entities()
	assert.Equal(t, "Sara", entities["name"])
	assert.Equal(t, "Pixel 8", entities["phone_model"])
}

func TestCompressorStripsMarkdownFences(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.AddResponse("I live in Erbil", "```json\n{\"location\": \"Erbil\"}\n```")
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("I live in Erbil")
	c.Submit(sess)
	c.Flush()

	assert.Equal(t, "Erbil", sess.Entities()["location"])
}

func TestCompressorKeepsOnlyScalars(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.AddResponse(
		"complex output",
		`{"name": "Sara", "nested": {"a": 1}, "tags": ["x"], "missing": null, "age": 30}`,
	)
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("complex output")
	c.Submit(sess)
	c.Flush()

	entities := sess.Entities()
	assert.Equal(t, "Sara", entities["name"])
	assert.Equal(t, float64(30), entities["age"])
	assert.NotContains(t, entities, "nested")
	assert.NotContains(t, entities, "tags")
	assert.NotContains(t, entities, "missing")
}

func TestCompressorSummarizesAfterCompletedPair(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("my sim is broken", "let's check the APN settings")
	c.Submit(sess)
	c.Flush()

	assert.NotEmpty(t, sess.Summary())

	// Both the extraction and the summary call ran.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	summaryPrompt := reqs[1].Messages[0].Content
	assert.Contains(t, summaryPrompt, "OLD SUMMARY: New conversation.")
	assert.Contains(t, summaryPrompt, "User: my sim is broken")
	assert.Contains(t, summaryPrompt, "Assistant: let's check the APN settings")
}

func TestCompressorSkipsSummaryOnOddTurnCount(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("first message")
	c.Submit(sess)
	c.Flush()

	assert.Empty(t, sess.Summary())
	assert.Len(t, mock.Requests(), 1)
}

func TestCompressorSwallowsModelFailures(t *testing.T) {
	c := NewCompressor(failingModel{})
	defer c.Close()

	sess := newSessionWithTurns("anything", "reply")
	c.Submit(sess)
	c.Flush()

	assert.Empty(t, sess.Entities())
	assert.Empty(t, sess.Summary())
}

func TestCompressorSwallowsMalformedJSON(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.AddResponse("garbage in", "this is not json")
	c := NewCompressor(mock)
	defer c.Close()

	sess := newSessionWithTurns("garbage in")
	c.Submit(sess)
	c.Flush()

	assert.Empty(t, sess.Entities())
}

func TestCompressorSubmitDuringClose(t *testing.T) {
	c := NewCompressor(model.NewMockModel("mock", "test"))

	// Hammer Submit from several goroutines while Close runs; a submission
	// racing the shutdown must either be queued and drained or dropped, never
	// land on a closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sess := core.NewSession(fmt.Sprintf("s%d-%d", worker, j), time.Now())
				c.Submit(sess)
			}
		}(i)
	}
	c.Close()
	wg.Wait()

	// After Close, submissions are dropped silently.
	assert.NotPanics(t, func() {
		c.Submit(core.NewSession("late", time.Now()))
	})
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced with tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", "Here you go:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}
