package cora

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rayied/cora/config"
	"github.com/rayied/cora/model"
	"github.com/rayied/cora/prompt"
)

// Classification is the structured triage result for a piece of customer
// text: language, category, routing and sentiment, plus knowledge-base
// article recommendations drawn from retrieved context.
type Classification struct {
	DetectedLanguage      string            `json:"detected_language"`
	Category              string            `json:"category"`
	IssueType             string            `json:"issue_type"`
	RoutingDepartment     string            `json:"routing_department"`
	Sentiment             string            `json:"sentiment"`
	RecommendedArticleIDs []string          `json:"recommended_article_ids"`
	Summaries             map[string]string `json:"summaries,omitempty"`
}

// Classify runs the forced-JSON classification path: the configured
// classification prompt is enriched with retrieved knowledge-base context,
// the model is sampled near-deterministically, and the JSON output is parsed
// into a Classification. When the model recommends no articles, the
// retriever's own nearest articles fill the gap.
func (a *Assistant) Classify(ctx context.Context, text string) (Classification, error) {
	if strings.TrimSpace(text) == "" {
		return Classification{}, fmt.Errorf("text must not be empty")
	}

	builder := prompt.New(a.cfg.ClassificationPrompt)
	rctx, rcancel := a.outbound(ctx)
	contextBlock, err := a.retriever.RetrieveAndFormat(rctx, text, "", "")
	rcancel()
	if err != nil {
		// Classification still works ungrounded; recommendations just thin out.
		a.logger.Warn("Context retrieval for classification failed", "error", err)
	} else {
		builder.Append(contextBlock)
	}

	gctx, gcancel := a.outbound(ctx)
	respCh, errCh := a.model.Generate(gctx, model.Request{
		Instructions: builder.String(),
		Messages:     []model.Message{{Role: "user", Content: text}},
		Sampling:     config.ClassificationSampling,
	})
	raw, err := model.Collect(respCh, errCh)
	gcancel()
	if err != nil {
		return Classification{}, fmt.Errorf("classification call: %w", err)
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return Classification{}, fmt.Errorf("classification output is not a JSON object: %q", raw)
	}

	result := Classification{
		DetectedLanguage:  parsed.Get("detected_language").String(),
		Category:          parsed.Get("category").String(),
		IssueType:         parsed.Get("issue_type").String(),
		RoutingDepartment: parsed.Get("routing_department").String(),
		Sentiment:         parsed.Get("sentiment").String(),
	}
	for _, id := range parsed.Get("recommended_article_ids").Array() {
		if s := id.String(); s != "" {
			result.RecommendedArticleIDs = append(result.RecommendedArticleIDs, s)
		}
	}
	if summaries := parsed.Get("summaries"); summaries.IsObject() {
		result.Summaries = map[string]string{}
		summaries.ForEach(func(key, value gjson.Result) bool {
			result.Summaries[key.Str] = value.String()
			return true
		})
	}

	if len(result.RecommendedArticleIDs) == 0 {
		rctx, rcancel := a.outbound(ctx)
		ids, err := a.retriever.RecommendArticles(rctx, text, "", a.cfg.TopN)
		rcancel()
		if err != nil {
			a.logger.Warn("Article recommendation failed", "error", err)
		} else {
			result.RecommendedArticleIDs = ids
		}
	}
	return result, nil
}
