package cora

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rayied/cora/config"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/model"
	"github.com/rayied/cora/prompt"
)

// AskRequest is a single question to the assistant. SessionID links the
// request to an existing conversation; empty, unknown or expired ids start a
// fresh session. Language is a code such as "en", "ar" or "ku", or empty /
// "auto" for detection via the translator.
type AskRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
	Language  string `json:"language,omitempty"`
	AppName   string `json:"app_name,omitempty"`
}

// Fallback answer texts for degraded paths. They are user-facing and stay in
// English; the internal cause travels in Answer.Err.
const (
	unavailableAnswer = "I'm currently unable to answer questions. Please try again later."
	failedAnswer      = "I encountered an error while processing your question. Please try again."
)

// Ask answers a question through the full pipeline: session resolution,
// inbound translation, retrieval, grounded generation, outbound translation
// and turn persistence. Degraded outcomes (no context, unreachable backend)
// are reported as Answer kinds, not errors; the returned error is reserved
// for caller mistakes such as an empty question.
func (a *Assistant) Ask(ctx context.Context, req AskRequest) (core.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return core.Answer{}, fmt.Errorf("question must not be empty")
	}

	sess := a.sessions.GetOrCreate(req.SessionID)
	log := a.logger

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
		log.Error("Retrieval failed", "session_id", sess.ID, "error", err)
		return core.Answer{
			Kind:      kind,
			Answer:    text,
			SessionID: sess.ID,
			Language:  lang,
			Err:       err,
		}, nil
	}

	if len(docs) == 0 {
		answer := a.translateOut(ctx, a.cfg.NoContextMessage, lang)
		a.persistPair(sess, req.Question, answer, lang, 0)
		log.Info("No qualifying context", "session_id", sess.ID, "question", english)
		return core.Answer{
			Kind:      core.NoContext,
			Answer:    answer,
			Sources:   []core.Source{},
			SessionID: sess.ID,
			Language:  lang,
		}, nil
	}

	englishAnswer, err := a.generate(ctx, sess, english, docs, false, nil)
	if err != nil {
		log.Error("Answer generation failed", "session_id", sess.ID, "error", err)
		return core.Answer{
			Kind:      core.Failed,
			Answer:    failedAnswer,
			SessionID: sess.ID,
			Language:  lang,
			Err:       fmt.Errorf("generate answer: %w", err),
		}, nil
	}

	answer := a.translateOut(ctx, englishAnswer, lang)
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
	return result, nil
}

// outbound bounds a single call to an external capability (model, translator,
// vector index) with the configured request timeout, so a stalled backend
// cannot hang the request path.
func (a *Assistant) outbound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}

// translateIn normalizes the question into English for retrieval and
// generation. It returns the working question and the response language: the
// declared one, or whatever the translator detected. Translation failures
// degrade to the original text rather than failing the request.
func (a *Assistant) translateIn(ctx context.Context, question, language string) (english, lang string) {
	lang = language
	if lang == "" {
		lang = "auto"
	}
	if isEnglish(lang) {
		return question, "en"
	}

	tctx, cancel := a.outbound(ctx)
	defer cancel()
	tr, err := a.translator.Translate(tctx, question, lang, "en")
	if err != nil {
		a.logger.Warn("Inbound translation failed, using original text", "error", err)
		return question, lang
	}
	english = tr.Text
	if english == "" {
		english = question
	}
	if tr.DetectedSource != "" {
		lang = tr.DetectedSource
	}
	return english, lang
}

// translateOut localizes an English answer into the response language.
// English and undetected languages pass through; translation failures degrade
// to the English text.
func (a *Assistant) translateOut(ctx context.Context, text, lang string) string {
	if lang == "" || lang == "auto" || isEnglish(lang) {
		return text
	}
	tctx, cancel := a.outbound(ctx)
	defer cancel()
	tr, err := a.translator.Translate(tctx, text, "en", lang)
	if err != nil {
		a.logger.Warn("Outbound translation failed, returning English answer", "language", lang, "error", err)
		return text
	}
	if tr.Text == "" {
		return text
	}
	return tr.Text
}

// generate runs grounded answer generation. The system prompt is the
// configured persona plus the formatted context block; the user prompt is the
// question, prefixed with rendered conversation memory when the session has
// any. With stream set, partial deltas are forwarded to onDelta as they
// arrive.
func (a *Assistant) generate(
	ctx context.Context,
	sess *core.Session,
	english string,
	docs []core.RetrievedDocument,
	stream bool,
	onDelta func(delta string),
) (string, error) {
	instructions := prompt.New(a.cfg.SystemPrompt).
		Append(a.retriever.FormatContext(docs)).
		String()

	var userPrompt string
	if history := sess.RenderContext(a.cfg.MaxPairs); history != "" {
		userPrompt = fmt.Sprintf(
			"%s\n%s\n\nPlease provide a helpful answer based on the context above and our conversation history. Answer in English.",
			history, english)
	} else {
		userPrompt = fmt.Sprintf(
			"Question: %s\n\nPlease provide a helpful answer based on the context above. Answer in English.",
			english)
	}

	gctx, cancel := a.outbound(ctx)
	defer cancel()
	respCh, errCh := a.model.Generate(gctx, model.Request{
		Instructions: instructions,
		Messages:     []model.Message{{Role: "user", Content: userPrompt}},
		Sampling:     config.QASampling,
		Stream:       stream,
	})
	if !stream {
		return model.Collect(respCh, errCh)
	}

	var final string
	var sb strings.Builder
	for resp := range respCh {
		if resp.Partial {
			sb.WriteString(resp.Text)
			if onDelta != nil {
				onDelta(resp.Text)
			}
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

// persistPair appends the user question and the final answer to the session
// and hands the session to the background memory compressor. Every completed
// request stores exactly one user and one assistant turn.
func (a *Assistant) persistPair(sess *core.Session, question, answer, lang string, sources int) {
	sess.AddTurn(core.RoleUser, question, map[string]any{"language": lang}, a.now())
	sess.AddTurn(core.RoleAssistant, answer, map[string]any{"sources": sources}, a.now())
	a.compressor.Submit(sess)
}

func isEnglish(lang string) bool {
	switch strings.ToLower(lang) {
	case "en", "english":
		return true
	}
	return false
}
