// Package search retrieves the text units most relevant to a question.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/convotutor/internal/embedding"
	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/vector"
)

// DefaultTopK is the number of units retrieved when the caller passes 0.
const DefaultTopK = 4

// Retriever embeds questions and searches a caller-supplied index.
type Retriever struct {
	embedder    embedding.Embedder
	defaultTopK int
}

// NewRetriever returns a retriever. defaultTopK <= 0 means DefaultTopK.
func NewRetriever(embedder embedding.Embedder, defaultTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{embedder: embedder, defaultTopK: defaultTopK}
}

// DefaultTopK returns the top-k used when Retrieve is called with 0.
func (r *Retriever) DefaultTopK() int { return r.defaultTopK }

// Retrieve returns up to topK units of idx ranked by similarity to question.
// A nil index means no documents have been processed yet and yields an empty result
// without touching the embedder. topK 0 selects the default; a negative topK is
// models.ErrInvalidParameter.
func (r *Retriever) Retrieve(ctx context.Context, question string, idx *vector.Index, topK int) (*models.RetrievalResult, error) {
	start := time.Now()
	if topK < 0 {
		return nil, models.InvalidParameter("top_k must be positive, got %d", topK)
	}
	if topK == 0 {
		topK = r.defaultTopK
	}
	result := &models.RetrievalResult{Question: question, Hits: []*models.RetrievalHit{}}
	if idx == nil || idx.Size() == 0 {
		result.QueryTime = time.Since(start).Milliseconds()
		return result, nil
	}

	query, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := idx.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	result.Hits = hits
	result.QueryTime = time.Since(start).Milliseconds()
	return result, nil
}
