// Package config centralizes runtime configuration for the Cora assistant:
// retrieval knobs, session lifecycle, memory compression cadence and the
// sampling profiles used for the different model call styles.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rayied/cora/model"
)

// Sampling profiles. Classification-style calls run near-zero temperature
// with a fixed seed and forced JSON so structured output stays deterministic;
// conversational answers run moderate temperature for natural phrasing.
var (
	// ClassificationSampling drives the forced-JSON classification path.
	ClassificationSampling = model.Sampling{Temperature: 0.0, TopP: 0.1, Seed: seed(42), ForceJSON: true}
	// QASampling drives conversational answer generation.
	QASampling = model.Sampling{Temperature: 0.65, TopP: 0.8, MaxTokens: 300}
	// ExtractionSampling drives best-effort entity extraction.
	ExtractionSampling = model.Sampling{Temperature: 0.1, ForceJSON: true}
	// SummarySampling drives rolling summary regeneration.
	SummarySampling = model.Sampling{Temperature: 0.2, MaxTokens: 250}
)

func seed(v int64) *int64 { return &v }

// Config carries the tunables of the conversation-and-retrieval pipeline.
type Config struct {
	// TopN is how many nearest neighbors a retrieval requests.
	TopN int
	// SimilarityThreshold discards retrieved documents scoring below it.
	SimilarityThreshold float64
	// MaxPairs bounds the recent-turns window included in prompts. This is
	// the primary backpressure mechanism against unbounded conversation
	// growth.
	MaxPairs int
	// SessionTimeout is the idle duration after which sessions expire.
	SessionTimeout time.Duration
	// SummaryWindow is how many trailing turns feed a summary refresh.
	SummaryWindow int
	// RequestTimeout bounds every outbound call to an external capability.
	RequestTimeout time.Duration

	// TranslatorURL is the machine-translation service endpoint.
	TranslatorURL string
	// WeaviateURL is the vector index endpoint (scheme included).
	WeaviateURL string
	// ListenAddr is the HTTP server bind address.
	ListenAddr string

	// SystemPrompt is the opaque persona/instruction text prepended to every
	// answer generation. The prompt content is configuration, not code.
	SystemPrompt string
	// ClassificationPrompt drives the structured classification path.
	ClassificationPrompt string
	// NoContextMessage is returned (localized) when retrieval yields nothing.
	NoContextMessage string
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		TopN:                 3,
		SimilarityThreshold:  0.08,
		MaxPairs:             20,
		SessionTimeout:       30 * time.Minute,
		SummaryWindow:        8,
		RequestTimeout:       60 * time.Second,
		TranslatorURL:        "http://localhost:8000",
		WeaviateURL:          "http://localhost:8080",
		ListenAddr:           ":8001",
		SystemPrompt:         DefaultSystemPrompt,
		ClassificationPrompt: DefaultClassificationPrompt,
		NoContextMessage:     DefaultNoContextMessage,
	}
}

// DefaultSystemPrompt is a neutral fallback; deployments supply their own
// persona prompt via Config.SystemPrompt or CORA_SYSTEM_PROMPT_FILE.
const DefaultSystemPrompt = `You are Cora, a customer support agent.
Base your answer on the RETRIEVED CONTEXT below; it is your knowledge base.
If the context has relevant information, use it even when it is not a perfect
match. Only say you don't have the information when the context is completely
irrelevant. Give practical, actionable advice in plain language, and keep
simple answers short. If there is conversation history, reference it
naturally.`

// DefaultClassificationPrompt is a neutral fallback for the structured
// classification path; deployments supply their engineered prompt via
// Config.ClassificationPrompt or CORA_CLASSIFICATION_PROMPT_FILE.
const DefaultClassificationPrompt = `You are a support-ticket classifier for a telecommunications company.
Analyze the customer text and respond with a single JSON object containing
exactly these keys:
- "detected_language": ISO code of the input language ("en", "ar" or "ku")
- "category": one of "billing", "connectivity", "device", "account", "plan", "other"
- "issue_type": a short snake_case label for the concrete problem
- "routing_department": the team that should handle the ticket
- "sentiment": one of "positive", "neutral", "negative"
- "recommended_article_ids": array of knowledge-base article ids from the
  retrieved context that address the issue (empty array if none apply)
- "summaries": object with one-sentence summaries keyed by language code

Base recommendations only on the retrieved context. Return ONLY the JSON
object, no markdown.`

// DefaultNoContextMessage is the English no-grounding answer, translated back
// to the caller's language before returning.
const DefaultNoContextMessage = "I don't have enough information to answer that question. Please contact our support team for assistance."

// FromEnv overlays environment variables onto the defaults. Unset or
// malformed values keep their defaults.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("CORA_TRANSLATOR_URL"); v != "" {
		cfg.TranslatorURL = v
	}
	if v := os.Getenv("CORA_WEAVIATE_URL"); v != "" {
		cfg.WeaviateURL = v
	}
	if v := os.Getenv("CORA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CORA_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopN = n
		}
	}
	if v := os.Getenv("CORA_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CORA_MAX_PAIRS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPairs = n
		}
	}
	if v := os.Getenv("CORA_SESSION_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeout = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("CORA_SYSTEM_PROMPT_FILE"); v != "" {
		if data, err := os.ReadFile(v); err == nil {
			cfg.SystemPrompt = string(data)
		}
	}
	if v := os.Getenv("CORA_CLASSIFICATION_PROMPT_FILE"); v != "" {
		if data, err := os.ReadFile(v); err == nil {
			cfg.ClassificationPrompt = string(data)
		}
	}
	return cfg
}
