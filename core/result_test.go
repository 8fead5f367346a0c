package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceForSimilarity(t *testing.T) {
	tests := []struct {
		name string
		avg  float64
		want Confidence
	}{
		{"well above high cutoff", 0.95, ConfidenceHigh},
		{"just above high cutoff", 0.81, ConfidenceHigh},
		{"exactly high cutoff", 0.8, ConfidenceMedium},
		{"mid band", 0.7, ConfidenceMedium},
		{"exactly medium cutoff", 0.6, ConfidenceLow},
		{"low", 0.3, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfidenceForSimilarity(tt.avg))
		})
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.InDelta(t, 1.0, SimilarityFromDistance(0), 1e-9)
	assert.InDelta(t, 0.5, SimilarityFromDistance(1), 1e-9)
	assert.Greater(t, SimilarityFromDistance(0.1), SimilarityFromDistance(0.2))
}

func TestMetadataFilterIsZero(t *testing.T) {
	assert.True(t, MetadataFilter{}.IsZero())
	assert.False(t, MetadataFilter{Language: "en"}.IsZero())
	assert.False(t, MetadataFilter{SourceType: SourcePDF}.IsZero())
}
