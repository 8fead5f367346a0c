package cora

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rayied/cora/core"
)

// StreamEvent is one increment of a streamed answer. Delta events carry
// partial answer text in arrival order; the terminal event carries the
// complete Answer instead (its Answer field is non-nil) and is always last.
type StreamEvent struct {
	Delta  string
	Answer *core.Answer
}

// AskStream answers a question incrementally. The session is resolved before
// the stream starts so callers can surface the session id ahead of the first
// chunk. English answers stream token deltas as the model emits them;
// non-English answers are generated in full, translated, and delivered as a
// single delta, since translation needs the complete English text. The
// channel is closed after the terminal event.
func (a *Assistant) AskStream(ctx context.Context, req AskRequest) (string, <-chan StreamEvent, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", nil, fmt.Errorf("question must not be empty")
	}

	sess := a.sessions.GetOrCreate(req.SessionID)
	events := make(chan StreamEvent, 32)

	go func() {
		defer close(events)
		a.streamAnswer(ctx, sess, req, events)
	}()

	return sess.ID, events, nil
}

// emit delivers one event, giving up when the consumer is gone. Abandoned
// streams (client disconnects, nobody drains the channel) must not pin the
// producer goroutine on a full buffer.
func emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Assistant) streamAnswer(ctx context.Context, sess *core.Session, req AskRequest, events chan<- StreamEvent) {
	english, lang := a.translateIn(ctx, req.Question, req.Language)

	rctx, cancel := a.outbound(ctx)
	docs, err := a.retriever.Retrieve(rctx, english, "", req.AppName)
	cancel()
	if err != nil {
		kind := core.Failed
		text := failedAnswer
		if errors.Is(err, core.ErrUnavailable) {
			kind = core.Unavailable
			text = unavailableAnswer
		}
		a.logger.Error("Retrieval failed", "session_id", sess.ID, "error", err)
		if !emit(ctx, events, StreamEvent{Delta: text}) {
			return
		}
		emit(ctx, events, StreamEvent{Answer: &core.Answer{
			Kind:      kind,
			Answer:    text,
			SessionID: sess.ID,
			Language:  lang,
			Err:       err,
		}})
		return
	}

	if len(docs) == 0 {
		answer := a.translateOut(ctx, a.cfg.NoContextMessage, lang)
		a.persistPair(sess, req.Question, answer, lang, 0)
		if !emit(ctx, events, StreamEvent{Delta: answer}) {
			return
		}
		emit(ctx, events, StreamEvent{Answer: &core.Answer{
			Kind:      core.NoContext,
			Answer:    answer,
			Sources:   []core.Source{},
			SessionID: sess.ID,
			Language:  lang,
		}})
		return
	}

	streamDirect := isEnglish(lang)
	onDelta := func(delta string) {
		emit(ctx, events, StreamEvent{Delta: delta})
	}
	if !streamDirect {
		onDelta = nil
	}

	englishAnswer, err := a.generate(ctx, sess, english, docs, streamDirect, onDelta)
	if err != nil {
		a.logger.Error("Answer generation failed", "session_id", sess.ID, "error", err)
		emit(ctx, events, StreamEvent{Answer: &core.Answer{
			Kind:      core.Failed,
			Answer:    failedAnswer,
			SessionID: sess.ID,
			Language:  lang,
			Err:       fmt.Errorf("generate answer: %w", err),
		}})
		return
	}

	answer := englishAnswer
	if !streamDirect {
		answer = a.translateOut(ctx, englishAnswer, lang)
		if !emit(ctx, events, StreamEvent{Delta: answer}) {
			return
		}
	}

	sources := buildSources(docs)
	a.persistPair(sess, req.Question, answer, lang, len(sources))

	result := core.Answer{
		Kind:          core.Answered,
		Answer:        answer,
		Sources:       sources,
		Confidence:    sourceConfidence(sources),
		RetrievedDocs: len(docs),
		SessionID:     sess.ID,
		Language:      lang,
	}
	if answer != englishAnswer {
		result.OriginalAnswerEN = englishAnswer
	}
	emit(ctx, events, StreamEvent{Answer: &result})
}
