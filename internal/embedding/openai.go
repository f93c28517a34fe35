package embedding

import (
	"context"
	"fmt"
	"strings"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoembedding "github.com/cloudwego/eino/components/embedding"

	"github.com/hyperjump/convotutor/internal/models"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	CacheSize  int
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint through eino.
type OpenAIEmbedder struct {
	client     einoembedding.Embedder
	dimensions int
	cache      *EmbeddingCache
}

// NewOpenAIEmbedder connects to the endpoint described by cfg.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", models.ErrEmbeddingUnavailable)
	}
	client, err := openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: requestDimensions(cfg.Model, cfg.Dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	return NewOpenAIEmbedderFromClient(client, cfg.Dimensions, cfg.CacheSize), nil
}

// requestDimensions returns the dimensions parameter to send. Only the
// text-embedding-3 family accepts it; other models reject the field.
func requestDimensions(model string, dims int) *int {
	if dims <= 0 || !strings.HasPrefix(model, "text-embedding-3") {
		return nil
	}
	return &dims
}

// NewOpenAIEmbedderFromClient wraps an existing eino embedder. A cacheSize of 0
// disables caching.
func NewOpenAIEmbedderFromClient(client einoembedding.Embedder, dimensions, cacheSize int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, dimensions: dimensions, cache: NewEmbeddingCache(cacheSize)}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends every uncached non-empty text in one request. Empty strings are
// rejected by the API, so they map to the zero vector locally.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []string
	var slots []int
	for i, text := range texts {
		if text == "" {
			out[i] = make([]float32, e.dimensions)
			continue
		}
		if cached, ok := e.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	vecs, err := e.client.EmbedStrings(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(pending) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", models.ErrEmbeddingUnavailable, len(vecs), len(pending))
	}
	for j, v := range vecs {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d dimensions, got %d", models.ErrEmbeddingUnavailable, e.dimensions, len(v))
		}
		emb := make([]float32, len(v))
		for k, x := range v {
			emb[k] = float32(x)
		}
		NormalizeL2Slice(emb)
		e.cache.Set(pending[j], emb)
		out[slots[j]] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
