package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/convotutor/internal/models"
)

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Settings selects and configures an embedding provider.
type Settings struct {
	Provider      string
	ModelPath     string
	TokenizerPath string
	ONNXOutput    string
	ModelName     string
	BaseURL       string
	APIKey        string
	Dimensions    int
	MaxTokens     int
	CacheSize     int
}

// New returns the embedder named by s.Provider (ONNX when empty). A provider that cannot
// be loaded is reported as models.ErrEmbeddingUnavailable. There is no fallback to another
// provider.
func New(ctx context.Context, s Settings) (Embedder, error) {
	switch s.Provider {
	case "", ProviderONNX:
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:     s.ModelPath,
			TokenizerPath: s.TokenizerPath,
			Dimensions:    s.Dimensions,
			MaxTokens:     s.MaxTokens,
			CacheSize:     s.CacheSize,
			Output:        s.ONNXOutput,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		return e, nil
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(ctx, OpenAIConfig{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.ModelName,
			Dimensions: s.Dimensions,
			CacheSize:  s.CacheSize,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderHash:
		return NewHashEmbedder(s.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrEmbeddingUnavailable, s.Provider)
	}
}
