package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rayied/cora/core"
)

type entry struct {
	doc    core.IndexedDocument
	vector []float32
}

// InMemoryIndex is a process-local core.VectorIndex using brute-force cosine
// distance. Add is an idempotent upsert keyed by document id; Search ranking
// is deterministic for a fixed index state (ties break on document id).
type InMemoryIndex struct {
	embedder core.Embedder

	mu      sync.RWMutex
	entries map[string]entry
}

// Compile-time interface implementation check.
var _ core.VectorIndex = (*InMemoryIndex)(nil)

// NewInMemoryIndex constructs an empty index over the given embedder.
func NewInMemoryIndex(embedder core.Embedder) *InMemoryIndex {
	return &InMemoryIndex{embedder: embedder, entries: make(map[string]entry)}
}

// Add upserts a document. Re-adding the same id replaces the stored entry,
// leaving the document count unchanged.
func (idx *InMemoryIndex) Add(ctx context.Context, doc core.IndexedDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("indexed document requires an id")
	}
	vec, err := idx.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[doc.ID] = entry{doc: doc, vector: vec}
	return nil
}

// Search returns the k nearest documents by cosine distance, nearest first.
func (idx *InMemoryIndex) Search(ctx context.Context, query string, k int, filter core.MetadataFilter) ([]core.SearchHit, error) {
	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		id  string
		hit core.SearchHit
	}
	candidates := make([]scored, 0, len(idx.entries))
	for id, e := range idx.entries {
		if !matches(e.doc.Metadata, filter) {
			continue
		}
		candidates = append(candidates, scored{
			id: id,
			hit: core.SearchHit{
				Text:     e.doc.Text,
				Metadata: e.doc.Metadata,
				Distance: cosineDistance(queryVec, e.vector),
			},
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Distance != candidates[j].hit.Distance {
			return candidates[i].hit.Distance < candidates[j].hit.Distance
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]core.SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (idx *InMemoryIndex) Count(context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

// Reset drops every indexed document.
func (idx *InMemoryIndex) Reset(context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]entry)
	return nil
}

func matches(md core.DocumentMetadata, f core.MetadataFilter) bool {
	if f.Language != "" && md.Language != f.Language {
		return false
	}
	if f.AppName != "" && md.AppName != f.AppName {
		return false
	}
	if f.SourceType != "" && md.SourceType != f.SourceType {
		return false
	}
	return true
}

// cosineDistance returns 1 - cosine similarity, clamped at 0 so identical
// vectors score exactly zero.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	if d < 0 {
		return 0
	}
	return d
}
