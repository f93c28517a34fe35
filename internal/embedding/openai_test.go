package embedding

import (
	"context"
	"errors"
	"testing"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/convotutor/internal/models"
)

type fakeEinoEmbedder struct {
	dims  int
	err   error
	calls [][]string
}

func (f *fakeEinoEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoembedding.Option) ([][]float64, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, f.dims)
		v[len(t)%f.dims] = 2
		out[i] = v
	}
	return out, nil
}

func TestOpenAIEmbedder_batchAndCache(t *testing.T) {
	fake := &fakeEinoEmbedder{dims: 4}
	e := NewOpenAIEmbedderFromClient(fake, 4, 16)
	ctx := context.Background()

	out, err := e.EmbedBatch(ctx, []string{"a", "", "abc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float32{0, 1, 0, 0}, out[0])
	assert.Equal(t, []float32{0, 0, 0, 0}, out[1], "empty text is embedded locally")
	assert.Equal(t, []float32{0, 0, 0, 1}, out[2])
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"a", "abc"}, fake.calls[0])

	again, err := e.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, out[2], again)
	assert.Len(t, fake.calls, 1, "cached text should not hit the endpoint")
	assert.Equal(t, 4, e.Dimensions())
}

func TestOpenAIEmbedder_errors(t *testing.T) {
	ctx := context.Background()

	e := NewOpenAIEmbedderFromClient(&fakeEinoEmbedder{dims: 4, err: errors.New("connection refused")}, 4, 0)
	_, err := e.Embed(ctx, "hello")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	e = NewOpenAIEmbedderFromClient(&fakeEinoEmbedder{dims: 3}, 4, 0)
	_, err = e.Embed(ctx, "hello")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "expected 4 dimensions")
}

func TestOpenAIEmbedder_zeroCacheSize(t *testing.T) {
	fake := &fakeEinoEmbedder{dims: 4}
	e := NewOpenAIEmbedderFromClient(fake, 4, 0)
	ctx := context.Background()

	_, err := e.Embed(ctx, "abc")
	require.NoError(t, err)
	_, err = e.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Len(t, fake.calls, 2, "a zero cache size should disable caching")
}

func TestRequestDimensions(t *testing.T) {
	got := requestDimensions("text-embedding-3-small", 1536)
	require.NotNil(t, got)
	assert.Equal(t, 1536, *got)
	assert.Nil(t, requestDimensions("text-embedding-ada-002", 1536))
	assert.Nil(t, requestDimensions("text-embedding-3-large", 0))
}

func TestNew_providers(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, Settings{Provider: ProviderHash, Dimensions: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, e.Dimensions())

	_, err = New(ctx, Settings{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable, "missing API key")

	_, err = New(ctx, Settings{Provider: "word2vec"})
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	_, err = New(ctx, Settings{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx", Dimensions: 384, MaxTokens: 16, CacheSize: 1})
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}
