package cora

import (
	"math"

	"github.com/rayied/cora/core"
)

// buildSources turns retrieved documents into caller-facing citations.
// Article chunks sharing an article id collapse into one source (first seen,
// nearest first, wins); pdf chunks are distinct citations and never merged.
func buildSources(docs []core.RetrievedDocument) []core.Source {
	seen := make(map[string]bool, len(docs))
	sources := make([]core.Source, 0, len(docs))
	for _, doc := range docs {
		md := doc.Metadata
		if md.SourceType == core.SourceArticle {
			if md.ArticleID != "" {
				if seen[md.ArticleID] {
					continue
				}
				seen[md.ArticleID] = true
			}
			sources = append(sources, core.Source{
				Type:       core.SourceArticle,
				ArticleID:  md.ArticleID,
				Title:      md.Title,
				App:        md.AppName,
				Similarity: roundSimilarity(doc.Similarity),
			})
			continue
		}
		sources = append(sources, core.Source{
			Type:       core.SourcePDF,
			File:       md.SourceFile,
			Similarity: roundSimilarity(doc.Similarity),
		})
	}
	return sources
}

// sourceConfidence grades the answer by the mean similarity of the
// deduplicated sources.
func sourceConfidence(sources []core.Source) core.Confidence {
	if len(sources) == 0 {
		return ""
	}
	var sum float64
	for _, s := range sources {
		sum += s.Similarity
	}
	return core.ConfidenceForSimilarity(sum / float64(len(sources)))
}

func roundSimilarity(s float64) float64 {
	return math.Round(s*1000) / 1000
}
