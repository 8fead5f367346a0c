package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayied/cora/core"
)

// hashEmbedder maps known words onto fixed unit vectors so distances are
// predictable without a real embedding model.
type hashEmbedder struct {
	vectors map[string][]float32
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func newTestIndex() (*InMemoryIndex, *hashEmbedder) {
	emb := &hashEmbedder{vectors: map[string][]float32{
		"sim activation": {1, 0, 0},
		"sim problems":   {0.9, 0.1, 0},
		"billing":        {0, 1, 0},
		"roaming":        {0, 0, 1},
	}}
	return NewInMemoryIndex(emb), emb
}

func addDoc(t *testing.T, idx *InMemoryIndex, id, text, lang string) {
	t.Helper()
	err := idx.Add(context.Background(), core.IndexedDocument{
		ID:   id,
		Text: text,
		Metadata: core.DocumentMetadata{
			SourceType: core.SourceArticle,
			ArticleID:  id,
			Language:   lang,
		},
	})
	require.NoError(t, err)
}

func TestAddIsIdempotent(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()

	addDoc(t, idx, "a1", "sim activation", "en")
	addDoc(t, idx, "a1", "sim activation", "en")

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddRequiresID(t *testing.T) {
	idx, _ := newTestIndex()
	err := idx.Add(context.Background(), core.IndexedDocument{Text: "no id"})
	assert.Error(t, err)
}

func TestSearchRanksByDistance(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()

	addDoc(t, idx, "near", "sim problems", "en")
	addDoc(t, idx, "exact", "sim activation", "en")
	addDoc(t, idx, "far", "billing", "en")

	hits, err := idx.Search(ctx, "sim activation", 3, core.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "sim activation", hits[0].Text)
	assert.Equal(t, "sim problems", hits[1].Text)
	assert.Equal(t, "billing", hits[2].Text)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
}

func TestSearchRespectsK(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()

	addDoc(t, idx, "a", "sim activation", "en")
	addDoc(t, idx, "b", "billing", "en")
	addDoc(t, idx, "c", "roaming", "en")

	hits, err := idx.Search(ctx, "sim activation", 2, core.MetadataFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchAppliesMetadataFilter(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()

	addDoc(t, idx, "en-doc", "sim activation", "en")
	addDoc(t, idx, "ar-doc", "sim problems", "ar")

	hits, err := idx.Search(ctx, "sim activation", 5, core.MetadataFilter{Language: "ar"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ar-doc", hits[0].Metadata.ArticleID)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, _ := newTestIndex()

	hits, err := idx.Search(context.Background(), "anything", 3, core.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReset(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()

	addDoc(t, idx, "a", "sim activation", "en")
	require.NoError(t, idx.Reset(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
