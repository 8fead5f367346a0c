// Package ingest loads the knowledge base into a core.VectorIndex. Two
// source shapes are supported: JSON article files (one document per language
// variant) and PDF manuals (fixed-size overlapping chunks). Document ids are
// derived from source identity, so re-running ingestion upserts instead of
// duplicating.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tidwall/gjson"

	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
)

// Options configures the Indexer.
type Options struct {
	// ChunkSize is the PDF chunk length in characters.
	ChunkSize int
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int
	// Logger records per-file outcomes. Defaults to NoOp.
	Logger logging.Logger
}

// Stats summarizes an ingestion run.
type Stats struct {
	Articles  int `json:"articles"`
	PDFChunks int `json:"pdf_chunks"`
	Files     int `json:"files"`
	Skipped   int `json:"skipped"`
}

// Total returns the number of documents indexed.
func (s Stats) Total() int { return s.Articles + s.PDFChunks }

// Indexer writes knowledge-base documents into a vector index.
type Indexer struct {
	index     core.VectorIndex
	chunkSize int
	overlap   int
	logger    logging.Logger
}

// New constructs an Indexer over the given index.
func New(index core.VectorIndex, optFns ...func(o *Options)) *Indexer {
	opts := Options{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Indexer{
		index:     index,
		chunkSize: opts.ChunkSize,
		overlap:   opts.ChunkOverlap,
		logger:    opts.Logger,
	}
}

// IndexDirectory walks dir recursively and indexes every JSON and PDF file.
// Files whose name contains "ignored" are skipped. Per-file errors are logged
// and counted, not fatal; the walk continues.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".pdf" {
			return nil
		}
		if strings.Contains(name, "ignored") {
			ix.logger.Info("Skipping file", "path", path)
			stats.Skipped++
			return nil
		}

		stats.Files++
		switch ext {
		case ".json":
			n, err := ix.IndexJSONFile(ctx, path)
			if err != nil {
				ix.logger.Error("JSON indexing failed", "path", path, "error", err)
				stats.Skipped++
				return nil
			}
			stats.Articles += n
		case ".pdf":
			n, err := ix.IndexPDFFile(ctx, path)
			if err != nil {
				ix.logger.Error("PDF indexing failed", "path", path, "error", err)
				stats.Skipped++
				return nil
			}
			stats.PDFChunks += n
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", dir, err)
	}
	ix.logger.Info("Ingestion finished",
		"files", stats.Files, "articles", stats.Articles,
		"pdf_chunks", stats.PDFChunks, "skipped", stats.Skipped)
	return stats, nil
}

// IndexJSONFile indexes the articles in a JSON file (a single object or an
// array of objects). Each non-empty language variant becomes its own document
// with id "article_<id>_<lang>" so variants retrieve independently.
func (ix *Indexer) IndexJSONFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	parsed := gjson.ParseBytes(data)
	articles := []gjson.Result{parsed}
	if parsed.IsArray() {
		articles = parsed.Array()
	}

	count := 0
	for _, article := range articles {
		if !article.IsObject() {
			continue
		}
		articleID := article.Get("id").String()
		if articleID == "" {
			articleID = "unknown"
		}
		appName := article.Get("app_name").String()
		title := article.Get("title").String()
		if title == "" {
			title = "Untitled"
		}

		variants := []struct {
			lang    string
			content string
		}{
			{"en", article.Get("content").String()},
			{"ar", article.Get("content_ar").String()},
			{"ku", article.Get("content_ku").String()},
		}
		for _, v := range variants {
			if strings.TrimSpace(v.content) == "" {
				continue
			}
			doc := core.IndexedDocument{
				ID:   fmt.Sprintf("article_%s_%s", articleID, v.lang),
				Text: fmt.Sprintf("Title: %s\n\n%s", title, v.content),
				Metadata: core.DocumentMetadata{
					SourceType: core.SourceArticle,
					SourceFile: filepath.Base(path),
					ArticleID:  articleID,
					AppName:    appName,
					Title:      title,
					Language:   v.lang,
				},
			}
			if err := ix.index.Add(ctx, doc); err != nil {
				return count, fmt.Errorf("index %s: %w", doc.ID, err)
			}
			count++
		}
	}
	ix.logger.Info("Indexed article variants", "path", path, "count", count)
	return count, nil
}

// IndexPDFFile extracts the text of a PDF, splits it into overlapping chunks
// and indexes each chunk with id "pdf_<stem>_chunk_<i>". PDFs are assumed to
// be English.
func (ix *Indexer) IndexPDFFile(ctx context.Context, path string) (int, error) {
	text, err := extractPDFText(path)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}

	chunks := chunkText(text, ix.chunkSize, ix.overlap)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	count := 0
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		doc := core.IndexedDocument{
			ID:   fmt.Sprintf("pdf_%s_chunk_%d", stem, i),
			Text: chunk,
			Metadata: core.DocumentMetadata{
				SourceType: core.SourcePDF,
				SourceFile: filepath.Base(path),
				Language:   "en",
				ChunkIndex: i,
				ChunkTotal: len(chunks),
			},
		}
		if err := ix.index.Add(ctx, doc); err != nil {
			return count, fmt.Errorf("index %s: %w", doc.ID, err)
		}
		count++
	}
	ix.logger.Info("Indexed PDF chunks", "path", path, "count", count)
	return count, nil
}

// Count reports how many documents the backing index holds.
func (ix *Indexer) Count(ctx context.Context) (int, error) {
	return ix.index.Count(ctx)
}

// Reset drops every indexed document.
func (ix *Indexer) Reset(ctx context.Context) error {
	return ix.index.Reset(ctx)
}

// extractPDFText concatenates the plain text of every page, each prefixed
// with a page marker so chunk text stays attributable.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s", i, text)
	}
	return sb.String(), nil
}

// chunkText splits text into fixed-size chunks where consecutive chunks share
// overlap characters, so sentences straddling a boundary stay retrievable.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
