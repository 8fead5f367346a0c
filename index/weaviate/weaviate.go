// Package weaviate adapts a Weaviate instance to the core.VectorIndex
// contract. Documents are stored with externally supplied vectors (the class
// uses no vectorizer module) so the embedding model stays under Cora's
// control; object ids are derived deterministically from document ids, which
// makes re-indexing idempotent.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
)

// DefaultClass is the Weaviate class holding knowledge-base passages.
const DefaultClass = "KnowledgePassage"

// Options configures the Weaviate index adapter.
type Options struct {
	// Class overrides the Weaviate class name.
	Class string
	// Logger records index operations. Defaults to NoOp.
	Logger logging.Logger
}

// Index is a core.VectorIndex backed by a Weaviate instance.
type Index struct {
	client   *weaviate.Client
	embedder core.Embedder
	class    string
	logger   logging.Logger
}

// Compile-time interface implementation check.
var _ core.VectorIndex = (*Index)(nil)

// New constructs an Index for the given endpoint URL (scheme included) and
// ensures the backing class exists.
func New(ctx context.Context, url string, embedder core.Embedder, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Class: DefaultClass, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := weaviate.Config{Host: url, Scheme: "http"}
	if strings.HasPrefix(url, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		cfg.Host = strings.TrimPrefix(url, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	idx := &Index{client: client, embedder: embedder, class: opts.Class, logger: opts.Logger}
	if err := idx.ensureClass(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return idx, nil
}

func (idx *Index) ensureClass(ctx context.Context) error {
	exists, err := idx.client.Schema().ClassExistenceChecker().WithClassName(idx.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", idx.class, err)
	}
	if exists {
		return nil
	}
	class := &models.Class{
		Class:      idx.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "docId", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "sourceType", DataType: []string{"text"}},
			{Name: "sourceFile", DataType: []string{"text"}},
			{Name: "articleId", DataType: []string{"text"}},
			{Name: "appName", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "language", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "chunkTotal", DataType: []string{"int"}},
		},
	}
	if err := idx.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", idx.class, err)
	}
	idx.logger.Info("Created Weaviate class", "class", idx.class)
	return nil
}

// objectID derives a stable UUID from the document id so the same source
// passage always maps onto the same Weaviate object.
func (idx *Index) objectID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("cora/"+docID)).String()
}

// Add implements the idempotent upsert of core.VectorIndex: an existing
// object for the same document id is updated in place.
func (idx *Index) Add(ctx context.Context, doc core.IndexedDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("indexed document requires an id")
	}
	vec, err := idx.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	props := map[string]any{
		"docId":      doc.ID,
		"text":       doc.Text,
		"sourceType": string(doc.Metadata.SourceType),
		"sourceFile": doc.Metadata.SourceFile,
		"articleId":  doc.Metadata.ArticleID,
		"appName":    doc.Metadata.AppName,
		"title":      doc.Metadata.Title,
		"language":   doc.Metadata.Language,
		"chunkIndex": doc.Metadata.ChunkIndex,
		"chunkTotal": doc.Metadata.ChunkTotal,
	}

	id := idx.objectID(doc.ID)
	exists, err := idx.client.Data().Checker().WithClassName(idx.class).WithID(id).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: check object %s: %v", core.ErrUnavailable, doc.ID, err)
	}
	if exists {
		err = idx.client.Data().Updater().
			WithClassName(idx.class).
			WithID(id).
			WithProperties(props).
			WithVector(vec).
			Do(ctx)
	} else {
		_, err = idx.client.Data().Creator().
			WithClassName(idx.class).
			WithID(id).
			WithProperties(props).
			WithVector(vec).
			Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// passageResult mirrors the GraphQL response shape for a single passage.
type passageResult struct {
	DocID      string `json:"docId"`
	Text       string `json:"text"`
	SourceType string `json:"sourceType"`
	SourceFile string `json:"sourceFile"`
	ArticleID  string `json:"articleId"`
	AppName    string `json:"appName"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	ChunkIndex int    `json:"chunkIndex"`
	ChunkTotal int    `json:"chunkTotal"`
	Additional struct {
		Distance float64 `json:"distance"`
	} `json:"_additional"`
}

// Search implements core.VectorIndex via nearVector with optional metadata
// filters, returning hits in Weaviate's rank order (nearest first).
func (idx *Index) Search(ctx context.Context, query string, k int, filter core.MetadataFilter) ([]core.SearchHit, error) {
	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fields := []graphql.Field{
		{Name: "docId"},
		{Name: "text"},
		{Name: "sourceType"},
		{Name: "sourceFile"},
		{Name: "articleId"},
		{Name: "appName"},
		{Name: "title"},
		{Name: "language"},
		{Name: "chunkIndex"},
		{Name: "chunkTotal"},
		{Name: "_additional { distance }"},
	}

	builder := idx.client.GraphQL().Get().
		WithClassName(idx.class).
		WithFields(fields...).
		WithNearVector(idx.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithLimit(k)

	if where := buildWhere(filter); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate search: %v", core.ErrUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", resp.Errors[0].Message)
	}

	passages, err := parsePassages(resp, idx.class)
	if err != nil {
		return nil, err
	}

	hits := make([]core.SearchHit, 0, len(passages))
	for _, p := range passages {
		hits = append(hits, core.SearchHit{
			Text: p.Text,
			Metadata: core.DocumentMetadata{
				SourceType: core.SourceType(p.SourceType),
				SourceFile: p.SourceFile,
				ArticleID:  p.ArticleID,
				AppName:    p.AppName,
				Title:      p.Title,
				Language:   p.Language,
				ChunkIndex: p.ChunkIndex,
				ChunkTotal: p.ChunkTotal,
			},
			Distance: p.Additional.Distance,
		})
	}
	return hits, nil
}

// Count implements core.VectorIndex via an aggregate meta count.
func (idx *Index) Count(ctx context.Context) (int, error) {
	resp, err := idx.client.GraphQL().Aggregate().
		WithClassName(idx.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: weaviate aggregate: %v", core.ErrUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("weaviate aggregate: %s", resp.Errors[0].Message)
	}

	var parsed struct {
		Aggregate map[string][]struct {
			Meta struct {
				Count int `json:"count"`
			} `json:"meta"`
		} `json:"Aggregate"`
	}
	if err := reparse(resp.Data, &parsed); err != nil {
		return 0, err
	}
	rows := parsed.Aggregate[idx.class]
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Meta.Count, nil
}

// Reset drops and recreates the backing class.
func (idx *Index) Reset(ctx context.Context) error {
	if err := idx.client.Schema().ClassDeleter().WithClassName(idx.class).Do(ctx); err != nil {
		return fmt.Errorf("delete class %s: %w", idx.class, err)
	}
	return idx.ensureClass(ctx)
}

func buildWhere(filter core.MetadataFilter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if filter.Language != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"language"}).
			WithOperator(filters.Equal).
			WithValueString(filter.Language))
	}
	if filter.AppName != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"appName"}).
			WithOperator(filters.Equal).
			WithValueString(filter.AppName))
	}
	if filter.SourceType != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"sourceType"}).
			WithOperator(filters.Equal).
			WithValueString(string(filter.SourceType)))
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func parsePassages(resp *models.GraphQLResponse, class string) ([]passageResult, error) {
	var parsed struct {
		Get map[string][]passageResult `json:"Get"`
	}
	if err := reparse(resp.Data, &parsed); err != nil {
		return nil, err
	}
	return parsed.Get[class], nil
}

// reparse converts Weaviate's dynamic response payload into a typed shape via
// a marshal/unmarshal round trip.
func reparse(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal graphql response: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal graphql response: %w", err)
	}
	return nil
}
