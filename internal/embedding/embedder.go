// Package embedding maps text to fixed-length vectors via ONNX, an OpenAI-compatible
// endpoint or feature hashing.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are deterministic for a
// fixed model: the same text always yields the same vector, and EmbedBatch returns the
// same vectors as calling Embed on each text in order. The empty string is valid input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch in terms of Embed.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
