package core

import (
	"context"
	"errors"
)

// ErrUnavailable signals that an external capability (vector index,
// translator, model backend) is not ready or unreachable. Callers branch on
// it with errors.Is instead of treating "service not ready" as a panic-worthy
// condition.
var ErrUnavailable = errors.New("capability unavailable")

// VectorIndex wraps persistent embedding storage. Add is an idempotent upsert
// keyed by document id; Search returns the k nearest documents with metadata
// and distances, nearest first. For a fixed index state and query, Search
// ordering is deterministic.
type VectorIndex interface {
	Add(ctx context.Context, doc IndexedDocument) error
	Search(ctx context.Context, query string, k int, filter MetadataFilter) ([]SearchHit, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// Translation is the result of a machine-translation call. DetectedSource is
// the language the adapter identified the input as, which becomes the
// session's working language tag for the turn.
type Translation struct {
	Text           string `json:"translated_text"`
	DetectedSource string `json:"source_lang"`
}

// Translator provides bidirectional text translation with language
// auto-detection. Source may be a concrete language code or "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (Translation, error)
}

// Embedder turns text into a vector. Implementations must be deterministic
// for a fixed input so retrieval ranking is reproducible.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
