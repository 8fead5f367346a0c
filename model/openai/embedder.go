package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/rayied/cora/core"
)

// EmbedderOptions configure the OpenAI embedder.
type EmbedderOptions struct {
	Model string
}

// Embedder implements core.Embedder using the OpenAI Embeddings API.
type Embedder struct {
	client *openai.Client
	opts   EmbedderOptions
}

// Compile-time interface implementation check.
var _ core.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder using the official client, configured from
// the environment.
func NewEmbedder(optFns ...func(o *EmbedderOptions)) *Embedder {
	client := openai.NewClient()
	return NewEmbedderFromClient(&client, optFns...)
}

// NewEmbedderFromClient creates an embedder from an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *EmbedderOptions)) *Embedder {
	opts := EmbedderOptions{
		Model: openai.EmbeddingModelTextEmbedding3Small,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// Embed implements core.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
