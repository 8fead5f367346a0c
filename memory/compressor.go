package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rayied/cora/config"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
	"github.com/rayied/cora/model"
)

const extractionPrompt = `Extract specific details from the user text into a flat JSON object.
Target fields: name, phone_model, location, issue_type, plan_name.
Return ONLY JSON. No markdown. If info is missing, omit the key.`

// Options configures the Compressor.
type Options struct {
	// Workers is the number of concurrent task workers. Per-session work is
	// single-flight regardless, so workers only parallelize across sessions.
	Workers int
	// QueueSize bounds pending tasks; submissions beyond it are dropped.
	QueueSize int
	// SummaryWindow is how many trailing turns feed a summary refresh.
	SummaryWindow int
	// TaskTimeout bounds the model calls of a single task.
	TaskTimeout time.Duration
	// Logger records task outcomes. Defaults to NoOp.
	Logger logging.Logger
}

type task struct {
	session *core.Session
}

// Compressor updates session memory (entities + rolling summary) in the
// background. Failures are logged and swallowed: memory compression is
// best-effort enrichment and must never raise into the request path that
// triggered it.
type Compressor struct {
	model         model.Model
	summaryWindow int
	taskTimeout   time.Duration
	logger        logging.Logger

	tasks chan task
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]bool
	closed   bool
}

// NewCompressor constructs a Compressor and starts its workers.
func NewCompressor(m model.Model, optFns ...func(o *Options)) *Compressor {
	opts := Options{
		Workers:       4,
		QueueSize:     64,
		SummaryWindow: 8,
		TaskTimeout:   60 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Compressor{
		model:         m,
		summaryWindow: opts.SummaryWindow,
		taskTimeout:   opts.TaskTimeout,
		logger:        opts.Logger,
		tasks:         make(chan task, opts.QueueSize),
		inflight:      make(map[string]bool),
	}
	for i := 0; i < opts.Workers; i++ {
		go c.worker()
	}
	return c
}

// Submit queues a memory update for the session. It never blocks the caller:
// when the session already has a task queued or running, or the queue is
// full, the submission is dropped (the next completed turn re-triggers it).
func (c *Compressor) Submit(sess *core.Session) {
	c.mu.Lock()
	if c.closed || c.inflight[sess.ID] {
		c.mu.Unlock()
		return
	}
	c.inflight[sess.ID] = true
	// Add under the mutex so a racing Close waits for this task before
	// closing the tasks channel.
	c.wg.Add(1)
	c.mu.Unlock()

	select {
	case c.tasks <- task{session: sess}:
	default:
		c.release(sess.ID)
		c.logger.Warn("Memory task queue full, dropping update", "session_id", sess.ID)
	}
}

// Flush blocks until every submitted task has finished. Intended for tests
// and shutdown.
func (c *Compressor) Flush() { c.wg.Wait() }

// Close stops the workers after draining queued tasks.
func (c *Compressor) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	close(c.tasks)
}

func (c *Compressor) release(sessionID string) {
	c.mu.Lock()
	delete(c.inflight, sessionID)
	c.mu.Unlock()
	c.wg.Done()
}

func (c *Compressor) worker() {
	for t := range c.tasks {
		c.run(t.session)
		c.release(t.session.ID)
	}
}

// run performs one memory update: entity extraction from the latest user
// turn, then a summary refresh after each completed user+assistant pair.
func (c *Compressor) run(sess *core.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.taskTimeout)
	defer cancel()

	start := time.Now()
	if text, ok := sess.LastUserMessage(); ok {
		if err := c.extractEntities(ctx, sess, text); err != nil {
			c.logger.Warn("Entity extraction failed", "session_id", sess.ID, "error", err)
		}
	}

	if n := sess.TurnCount(); n > 0 && n%2 == 0 {
		if err := c.summarize(ctx, sess); err != nil {
			c.logger.Warn("Summarization failed", "session_id", sess.ID, "error", err)
		}
	}
	c.logger.Debug("Memory task finished", "session_id", sess.ID, "duration", time.Since(start))
}

// extractEntities asks the model for a flat key/value object describing the
// user text and merges scalar values into the session's entity table.
func (c *Compressor) extractEntities(ctx context.Context, sess *core.Session, text string) error {
	respCh, errCh := c.model.Generate(ctx, model.Request{
		Instructions: extractionPrompt,
		Messages:     []model.Message{{Role: "user", Content: text}},
		Sampling:     config.ExtractionSampling,
	})
	raw, err := model.Collect(respCh, errCh)
	if err != nil {
		return err
	}

	parsed := gjson.Parse(stripFences(raw))
	if !parsed.IsObject() {
		return fmt.Errorf("extraction output is not a JSON object: %q", raw)
	}

	updates := map[string]any{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		// Only scalar values survive; nulls and nested shapes are dropped.
		switch value.Type {
		case gjson.String:
			if value.Str != "" {
				updates[key.Str] = value.Str
			}
		case gjson.Number:
			updates[key.Str] = value.Num
		}
		return true
	})
	if len(updates) > 0 {
		sess.MergeEntities(updates)
		c.logger.Info("Updated session entities", "session_id", sess.ID, "fields", len(updates))
	}
	return nil
}

// summarize rewrites the session's rolling summary from the prior summary
// plus the trailing turn window. The replacement is wholesale, keeping
// unbounded history bounded in prompt-token cost.
func (c *Compressor) summarize(ctx context.Context, sess *core.Session) error {
	turns := sess.Turns()
	if len(turns) > c.summaryWindow {
		turns = turns[len(turns)-c.summaryWindow:]
	}
	var conversation strings.Builder
	for _, turn := range turns {
		label := "User"
		if turn.Role == core.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&conversation, "%s: %s\n", label, turn.Content)
	}

	current := sess.Summary()
	if current == "" {
		current = "New conversation."
	}

	prompt := fmt.Sprintf(`Update the conversation summary. Focus on the user's goal, technical details, and current status.
Ensure you include specific details that might be needed later.
OLD SUMMARY: %s
RECENT CHAT:
%s
UPDATED SUMMARY:`, current, conversation.String())

	respCh, errCh := c.model.Generate(ctx, model.Request{
		Messages: []model.Message{{Role: "user", Content: prompt}},
		Sampling: config.SummarySampling,
	})
	summary, err := model.Collect(respCh, errCh)
	if err != nil {
		return err
	}
	if summary != "" {
		sess.SetSummary(summary)
		c.logger.Info("Refreshed session summary", "session_id", sess.ID)
	}
	return nil
}

// stripFences unwraps a markdown code fence around the model output, if any,
// tolerating a leading language tag such as "json".
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[len(parts)-2]
	inner = strings.TrimPrefix(strings.TrimSpace(inner), "json")
	return strings.TrimSpace(inner)
}
