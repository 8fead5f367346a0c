package cora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayied/cora/config"
	"github.com/rayied/cora/core"
)

const classifyOutput = `{
  "detected_language": "en",
  "category": "connectivity",
  "issue_type": "no_signal",
  "routing_department": "network_support",
  "sentiment": "negative",
  "recommended_article_ids": ["12", "7"],
  "summaries": {"en": "Customer has no signal.", "ar": "العميل بدون إشارة."}
}`

func TestClassifyParsesStructuredOutput(t *testing.T) {
	a, qa, _ := newTestAssistant([]core.SearchHit{hitWithSimilarity("12", 0.9)}, nil)
	defer a.Close()
	qa.AddResponse("My phone has no signal at all", classifyOutput)

	result, err := a.Classify(context.Background(), "My phone has no signal at all")
	require.NoError(t, err)

	assert.Equal(t, "en", result.DetectedLanguage)
	assert.Equal(t, "connectivity", result.Category)
	assert.Equal(t, "no_signal", result.IssueType)
	assert.Equal(t, "network_support", result.RoutingDepartment)
	assert.Equal(t, "negative", result.Sentiment)
	assert.Equal(t, []string{"12", "7"}, result.RecommendedArticleIDs)
	assert.Equal(t, "Customer has no signal.", result.Summaries["en"])
	assert.Equal(t, "العميل بدون إشارة.", result.Summaries["ar"])
}

func TestClassifyUsesDeterministicSampling(t *testing.T) {
	a, qa, _ := newTestAssistant(nil, nil)
	defer a.Close()
	qa.AddResponse("text", classifyOutput)

	_, err := a.Classify(context.Background(), "text")
	require.NoError(t, err)

	reqs := qa.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, config.ClassificationSampling, reqs[0].Sampling)
	assert.True(t, reqs[0].Sampling.ForceJSON)
}

func TestClassifyInjectsRetrievedContext(t *testing.T) {
	a, qa, _ := newTestAssistant([]core.SearchHit{hitWithSimilarity("12", 0.9)}, nil)
	defer a.Close()
	qa.AddResponse("no signal", classifyOutput)

	_, err := a.Classify(context.Background(), "no signal")
	require.NoError(t, err)

	reqs := qa.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "### RETRIEVED CONTEXT:")
	assert.Contains(t, reqs[0].Instructions, "content 12")
}

func TestClassifyFillsRecommendationsFromRetrieval(t *testing.T) {
	a, qa, _ := newTestAssistant([]core.SearchHit{
		hitWithSimilarity("5", 0.9),
		hitWithSimilarity("5", 0.8),
		hitWithSimilarity("9", 0.7),
	}, nil)
	defer a.Close()
	qa.AddResponse("billing issue", `{"category": "billing", "recommended_article_ids": []}`)

	result, err := a.Classify(context.Background(), "billing issue")
	require.NoError(t, err)

	assert.Equal(t, "billing", result.Category)
	// Empty model recommendation falls back to nearest articles, deduplicated.
	assert.Equal(t, []string{"5", "9"}, result.RecommendedArticleIDs)
}

func TestClassifyRejectsNonJSONOutput(t *testing.T) {
	a, qa, _ := newTestAssistant(nil, nil)
	defer a.Close()
	qa.AddResponse("weird", "plain text, not an object")

	_, err := a.Classify(context.Background(), "weird")
	assert.Error(t, err)
}

func TestClassifyEmptyText(t *testing.T) {
	a, _, _ := newTestAssistant(nil, nil)
	defer a.Close()

	_, err := a.Classify(context.Background(), " ")
	assert.Error(t, err)
}
