package core

import "sort"

// SourceType distinguishes the two kinds of indexed knowledge.
type SourceType string

const (
	// SourceArticle is a knowledge-base article (one document per language
	// variant).
	SourceArticle SourceType = "article"
	// SourcePDF is a chunk of an ingested PDF document.
	SourcePDF SourceType = "pdf"
)

// DocumentMetadata describes where an indexed passage came from. Article
// documents carry a stable article id, app name and title; pdf chunks carry
// the source filename and chunk position.
type DocumentMetadata struct {
	SourceType SourceType `json:"source_type"`
	SourceFile string     `json:"source_file,omitempty"`
	ArticleID  string     `json:"article_id,omitempty"`
	AppName    string     `json:"app_name,omitempty"`
	Title      string     `json:"title,omitempty"`
	Language   string     `json:"language,omitempty"`
	ChunkIndex int        `json:"chunk_index,omitempty"`
	ChunkTotal int        `json:"chunk_total,omitempty"`
}

// IndexedDocument is the ingestion-time input contract for the vector index.
// ID is composed from source identity (article id + language, or pdf stem +
// chunk index) so re-indexing the same content is idempotent.
type IndexedDocument struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// SearchHit is a raw nearest-neighbor result returned by a VectorIndex:
// document text, metadata and the index's distance metric (lower is nearer).
type SearchHit struct {
	Text     string
	Metadata DocumentMetadata
	Distance float64
}

// RetrievedDocument is a threshold-qualified passage handed to prompt
// assembly. Similarity is a pure deterministic function of distance (see
// SimilarityFromDistance); documents below the configured threshold are
// excluded before reaching any caller.
type RetrievedDocument struct {
	Text       string           `json:"text"`
	Metadata   DocumentMetadata `json:"metadata"`
	Similarity float64          `json:"similarity"`
	Distance   float64          `json:"distance"`
}

// SimilarityFromDistance converts a monotonically decreasing distance metric
// into a similarity score in (0, 1].
func SimilarityFromDistance(distance float64) float64 {
	return 1 / (1 + distance)
}

// MetadataFilter restricts a vector search by document metadata. Zero-value
// fields are ignored.
type MetadataFilter struct {
	Language   string
	AppName    string
	SourceType SourceType
}

// IsZero reports whether the filter restricts nothing.
func (f MetadataFilter) IsZero() bool {
	return f.Language == "" && f.AppName == "" && f.SourceType == ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
