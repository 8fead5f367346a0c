package core

// Confidence grades how well the retrieved sources ground an answer. It is
// derived from the mean similarity of the deduplicated sources.
type Confidence string

const (
	// ConfidenceHigh means mean source similarity above 0.8.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium means mean source similarity above 0.6.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow is everything else.
	ConfidenceLow Confidence = "low"
)

// ConfidenceForSimilarity maps a mean similarity score onto a grade.
func ConfidenceForSimilarity(avg float64) Confidence {
	switch {
	case avg > 0.8:
		return ConfidenceHigh
	case avg > 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Source is a caller-facing citation. Article chunks sharing an article id
// are collapsed into a single source; pdf chunks are distinct citations and
// never merged.
type Source struct {
	Type       SourceType `json:"type"`
	ArticleID  string     `json:"article_id,omitempty"`
	File       string     `json:"file,omitempty"`
	Title      string     `json:"title,omitempty"`
	App        string     `json:"app,omitempty"`
	Similarity float64    `json:"similarity"`
}

// AnswerKind tags the outcome of an ask call so callers can branch
// exhaustively instead of probing optional fields.
type AnswerKind string

const (
	// Answered is the success case: an answer grounded in retrieved context.
	Answered AnswerKind = "answered"
	// NoContext means no qualifying documents were retrieved. This is a
	// first-class terminal path with its own localized response, not an
	// error.
	NoContext AnswerKind = "no_context"
	// Unavailable means a required capability (retriever, model) was not
	// reachable and the request ran in degraded mode.
	Unavailable AnswerKind = "unavailable"
	// Failed means generation failed; Answer holds a user-safe fallback
	// message and Err holds the internal cause.
	Failed AnswerKind = "failed"
)

// Answer is the structured result of a single ask request. Every kind carries
// a complete, human-readable Answer text; Confidence is set only for the
// Answered kind, and OriginalAnswerEN only when translation occurred.
type Answer struct {
	Kind             AnswerKind `json:"kind"`
	Answer           string     `json:"answer"`
	Sources          []Source   `json:"sources"`
	Confidence       Confidence `json:"confidence,omitempty"`
	RetrievedDocs    int        `json:"retrieved_docs"`
	SessionID        string     `json:"session_id"`
	Language         string     `json:"language"`
	OriginalAnswerEN string     `json:"original_answer_en,omitempty"`
	Err              error      `json:"-"`
}
