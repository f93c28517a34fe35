//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("onnx embedder needs a cgo build with onnxruntime installed")

// ONNXConfig describes a local sentence-embedding model.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	Dimensions    int
	MaxTokens     int
	CacheSize     int
	Output        string
}

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without cgo.
func NewONNXEmbedder(ONNXConfig) (*ONNXEmbedder, error) { return nil, errNoCGO }

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoCGO }

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
