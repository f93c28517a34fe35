//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/convotutor/internal/models"
)

// ONNXConfig describes a local sentence-embedding model.
type ONNXConfig struct {
	ModelPath string

	// TokenizerPath is the tokenizer.json holding the model's WordPiece vocabulary.
	TokenizerPath string
	Dimensions    int
	MaxTokens     int
	CacheSize     int

	// Output names the model output to read; OutputTokens (the default) is mean-pooled.
	Output string
}

// onnxIO holds the fixed-shape tensors bound to one session.
type onnxIO struct {
	ids, mask, types *ort.Tensor[int64]
	out              *ort.Tensor[float32]
}

func newONNXIO(maxTokens int, outShape ort.Shape) (*onnxIO, error) {
	io := &onnxIO{}
	inShape := ort.NewShape(1, int64(maxTokens))
	var err error
	if io.ids, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	if io.mask, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		io.destroy()
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	if io.types, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		io.destroy()
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	if io.out, err = ort.NewEmptyTensor[float32](outShape); err != nil {
		io.destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	return io, nil
}

func (io *onnxIO) destroy() {
	for _, t := range []*ort.Tensor[int64]{io.ids, io.mask, io.types} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if io.out != nil {
		_ = io.out.Destroy()
	}
	*io = onnxIO{}
}

// ONNXEmbedder runs a sentence-embedding model (all-MiniLM-L6-v2 by default) with ONNX
// Runtime. It requires CGO and the onnxruntime shared library. Inference is serialised
// on one session; vectors are L2-normalised.
type ONNXEmbedder struct {
	cfg       ONNXConfig
	tokenizer Tokenizer
	cache     *EmbeddingCache

	mu      sync.Mutex
	session *ort.AdvancedSession
	io      *onnxIO
}

// NewONNXEmbedder loads the model at cfg.ModelPath. The ONNX environment is initialised
// on first use.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 || cfg.MaxTokens <= 0 {
		return nil, models.InvalidParameter("onnx: dimensions and max tokens must be positive")
	}
	if cfg.Output == "" {
		cfg.Output = OutputTokens
	}
	tok, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	outShape := ort.NewShape(1, int64(cfg.Dimensions))
	if cfg.Output == OutputTokens {
		outShape = ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.Dimensions))
	}
	io, err := newONNXIO(cfg.MaxTokens, outShape)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.Output},
		[]ort.ArbitraryTensor{io.ids, io.mask, io.types},
		[]ort.ArbitraryTensor{io.out},
		nil)
	if err != nil {
		io.destroy()
		return nil, fmt.Errorf("load onnx model %s: %w", cfg.ModelPath, err)
	}
	return &ONNXEmbedder{
		cfg:       cfg,
		tokenizer: tok,
		cache:     NewEmbeddingCache(cfg.CacheSize),
		session:   session,
		io:        io,
	}, nil
}

// Embed returns the embedding of text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, types, err := e.tokenizer.Tokenize(text, e.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: embedder closed", models.ErrEmbeddingUnavailable)
	}
	copy(e.io.ids.GetData(), ids)
	copy(e.io.mask.GetData(), mask)
	copy(e.io.types.GetData(), types)
	if err := e.session.Run(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: inference: %w", models.ErrEmbeddingUnavailable, err)
	}
	var vec []float32
	if e.cfg.Output == OutputTokens {
		vec = MeanPool(e.io.out.GetData(), mask, e.cfg.Dimensions)
	} else {
		vec = append([]float32(nil), e.io.out.GetData()[:e.cfg.Dimensions]...)
	}
	e.mu.Unlock()

	NormalizeL2Slice(vec)
	e.cache.Set(text, vec)
	return vec, nil
}

// EmbedBatch embeds texts one sequence at a time.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Close releases the session and its tensors. Later calls to Embed fail.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.io.destroy()
	return err
}
