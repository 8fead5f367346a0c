// Package retriever turns a raw query into a ranked, threshold-filtered set
// of context passages and formats them into a single context block for prompt
// assembly. No re-ranking is performed beyond the vector index's own nearest
// first ordering; similarity-threshold filtering is a pure function of
// distance, so retrieval is deterministic for a fixed index state.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
)

// blockDelimiter separates formatted context blocks.
var blockDelimiter = strings.Repeat("-", 80)

// Options configures a Retriever.
type Options struct {
	// TopN is how many nearest neighbors to request per query.
	TopN int
	// SimilarityThreshold is the minimum acceptable similarity; documents
	// scoring below it never reach a caller.
	SimilarityThreshold float64
	// Logger records retrieval outcomes. Defaults to NoOp.
	Logger logging.Logger
}

// Retriever retrieves relevant context passages from a core.VectorIndex.
type Retriever struct {
	index     core.VectorIndex
	topN      int
	threshold float64
	logger    logging.Logger
}

// New constructs a Retriever over the given index.
func New(index core.VectorIndex, optFns ...func(o *Options)) *Retriever {
	opts := Options{
		TopN:                3,
		SimilarityThreshold: 0.08,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Retriever{
		index:     index,
		topN:      opts.TopN,
		threshold: opts.SimilarityThreshold,
		logger:    opts.Logger,
	}
}

// Retrieve searches the index for the query, converts each returned distance
// into a similarity score and discards results below the threshold. The
// remainder keeps the index's rank order, nearest first. Language and app
// filters are optional; empty strings restrict nothing.
func (r *Retriever) Retrieve(ctx context.Context, query, language, appName string) ([]core.RetrievedDocument, error) {
	start := time.Now()
	hits, err := r.index.Search(ctx, query, r.topN, core.MetadataFilter{
		Language: language,
		AppName:  appName,
	})
	if err != nil {
		r.logger.Error("Vector search failed", "query", query, "error", err)
		return nil, fmt.Errorf("vector search: %w", err)
	}

	docs := make([]core.RetrievedDocument, 0, len(hits))
	for _, hit := range hits {
		similarity := core.SimilarityFromDistance(hit.Distance)
		if similarity < r.threshold {
			continue
		}
		docs = append(docs, core.RetrievedDocument{
			Text:       hit.Text,
			Metadata:   hit.Metadata,
			Similarity: similarity,
			Distance:   hit.Distance,
		})
	}
	r.logger.Info("Retrieved context",
		"query", query, "hits", len(hits), "qualified", len(docs),
		"duration", time.Since(start))
	return docs, nil
}

// FormatContext renders the documents into a single context block: each
// document gets a positional source tag, a type-specific metadata header and
// its raw text, separated by a fixed delimiter. An empty input yields an
// empty string; callers treat that as "no grounding available", not an error.
func (r *Retriever) FormatContext(docs []core.RetrievedDocument) string {
	if len(docs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n### RETRIEVED CONTEXT:\n")
	sb.WriteString("Use the following information to inform your answer:\n\n")

	for i, doc := range docs {
		md := doc.Metadata
		fmt.Fprintf(&sb, "[Source %d] ", i+1)
		switch md.SourceType {
		case core.SourceArticle:
			fmt.Fprintf(&sb, "[Article ID: %s] [App: %s] [Title: %s]\n", md.ArticleID, md.AppName, md.Title)
		case core.SourcePDF:
			fmt.Fprintf(&sb, "[PDF: %s] [Chunk %d]\n", md.SourceFile, md.ChunkIndex)
		default:
			sb.WriteString("\n")
		}
		sb.WriteString(doc.Text)
		sb.WriteString("\n")
		sb.WriteString(blockDelimiter)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// RetrieveAndFormat retrieves and formats context in one step.
func (r *Retriever) RetrieveAndFormat(ctx context.Context, query, language, appName string) (string, error) {
	docs, err := r.Retrieve(ctx, query, language, appName)
	if err != nil {
		return "", err
	}
	return r.FormatContext(docs), nil
}

// RecommendArticles returns up to n unique article ids relevant to the query,
// restricted to article-type documents and deduplicated preserving first-seen
// (nearest first) order.
func (r *Retriever) RecommendArticles(ctx context.Context, query, language string, n int) ([]string, error) {
	hits, err := r.index.Search(ctx, query, n, core.MetadataFilter{
		Language:   language,
		SourceType: core.SourceArticle,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	var ids []string
	for _, hit := range hits {
		id := hit.Metadata.ArticleID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
