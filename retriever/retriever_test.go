package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayied/cora/core"
)

// stubIndex returns canned hits, recording the filter it was queried with.
type stubIndex struct {
	hits       []core.SearchHit
	err        error
	lastFilter core.MetadataFilter
	lastK      int
}

func (s *stubIndex) Add(context.Context, core.IndexedDocument) error { return nil }
func (s *stubIndex) Count(context.Context) (int, error)              { return len(s.hits), nil }
func (s *stubIndex) Reset(context.Context) error                     { return nil }

func (s *stubIndex) Search(_ context.Context, _ string, k int, filter core.MetadataFilter) ([]core.SearchHit, error) {
	s.lastFilter = filter
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func articleHit(id, title string, distance float64) core.SearchHit {
	return core.SearchHit{
		Text: "content of " + title,
		Metadata: core.DocumentMetadata{
			SourceType: core.SourceArticle,
			ArticleID:  id,
			AppName:    "rayied",
			Title:      title,
		},
		Distance: distance,
	}
}

func TestRetrieveThresholdFilter(t *testing.T) {
	idx := &stubIndex{hits: []core.SearchHit{
		articleHit("1", "near", 0.5),   // similarity ~0.67
		articleHit("2", "far", 15.0),   // similarity ~0.0625, below 0.08
		articleHit("3", "border", 2.0), // similarity ~0.33
	}}
	r := New(idx)

	docs, err := r.Retrieve(context.Background(), "sim not working", "", "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].Metadata.ArticleID)
	assert.Equal(t, "3", docs[1].Metadata.ArticleID)
	assert.InDelta(t, core.SimilarityFromDistance(0.5), docs[0].Similarity, 1e-9)
}

func TestRetrievePropagatesFilters(t *testing.T) {
	idx := &stubIndex{}
	r := New(idx, func(o *Options) { o.TopN = 5 })

	_, err := r.Retrieve(context.Background(), "q", "en", "rayied")
	require.NoError(t, err)
	assert.Equal(t, 5, idx.lastK)
	assert.Equal(t, "en", idx.lastFilter.Language)
	assert.Equal(t, "rayied", idx.lastFilter.AppName)
}

func TestRetrieveKeepsRankOrder(t *testing.T) {
	idx := &stubIndex{hits: []core.SearchHit{
		articleHit("a", "first", 0.1),
		articleHit("b", "second", 0.2),
		articleHit("c", "third", 0.3),
	}}
	r := New(idx)

	docs, err := r.Retrieve(context.Background(), "q", "", "")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].Metadata.ArticleID)
	assert.Equal(t, "b", docs[1].Metadata.ArticleID)
	assert.Equal(t, "c", docs[2].Metadata.ArticleID)
}

func TestFormatContextEmpty(t *testing.T) {
	r := New(&stubIndex{})
	assert.Empty(t, r.FormatContext(nil))
}

func TestFormatContextStructure(t *testing.T) {
	r := New(&stubIndex{})
	docs := []core.RetrievedDocument{
		{
			Text: "article body",
			Metadata: core.DocumentMetadata{
				SourceType: core.SourceArticle,
				ArticleID:  "42",
				AppName:    "rayied",
				Title:      "eSIM setup",
			},
			Similarity: 0.9,
		},
		{
			Text: "pdf body",
			Metadata: core.DocumentMetadata{
				SourceType: core.SourcePDF,
				SourceFile: "manual.pdf",
				ChunkIndex: 3,
			},
			Similarity: 0.5,
		},
	}

	out := r.FormatContext(docs)
	assert.Contains(t, out, "### RETRIEVED CONTEXT:")
	assert.Contains(t, out, "[Source 1] [Article ID: 42] [App: rayied] [Title: eSIM setup]")
	assert.Contains(t, out, "[Source 2] [PDF: manual.pdf] [Chunk 3]")
	assert.Contains(t, out, "article body")
	assert.Contains(t, out, "pdf body")
	assert.Equal(t, 2, strings.Count(out, strings.Repeat("-", 80)))
}

func TestRecommendArticlesDedup(t *testing.T) {
	idx := &stubIndex{hits: []core.SearchHit{
		articleHit("7", "dup en", 0.1),
		articleHit("7", "dup ar", 0.2),
		articleHit("9", "other", 0.3),
	}}
	r := New(idx)

	ids, err := r.RecommendArticles(context.Background(), "q", "", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "9"}, ids)
	assert.Equal(t, core.SourceArticle, idx.lastFilter.SourceType)
}
