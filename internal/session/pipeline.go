// Package session ties indexing, retrieval and answer composition together and owns the
// active index of a running process.
package session

import (
	"context"

	"github.com/hyperjump/convotutor/internal/answer"
	"github.com/hyperjump/convotutor/internal/indexer"
	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/search"
	"github.com/hyperjump/convotutor/internal/vector"
)

// Pipeline is the stateless boundary used by the presentation layer. The caller holds
// the index it gets back from ProcessDocuments and passes it into every question.
type Pipeline struct {
	indexer   *indexer.Indexer
	retriever *search.Retriever
	composer  *answer.Composer
	topK      int
}

// NewPipeline wires the three stages. topK <= 0 selects the retriever's default.
func NewPipeline(ix *indexer.Indexer, r *search.Retriever, c *answer.Composer, topK int) *Pipeline {
	return &Pipeline{indexer: ix, retriever: r, composer: c, topK: topK}
}

// ProcessDocuments segments and embeds the batch and returns a fresh index over it.
func (p *Pipeline) ProcessDocuments(ctx context.Context, docs []*models.DocumentInput) (*indexer.BatchResult, error) {
	return p.indexer.ProcessDocuments(ctx, docs)
}

// Retrieve returns the units of idx most relevant to question. topK 0 uses the pipeline default.
func (p *Pipeline) Retrieve(ctx context.Context, question string, idx *vector.Index, topK int) (*models.RetrievalResult, error) {
	if topK == 0 {
		topK = p.topK
	}
	return p.retriever.Retrieve(ctx, question, idx, topK)
}

// AnswerQuestion retrieves context from idx and asks the generator for an answer in
// language. A nil idx is allowed: the question is still sent, with an empty context.
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string, idx *vector.Index, language string) (*models.Answer, error) {
	return p.AnswerQuestionTopK(ctx, question, idx, language, 0)
}

// AnswerQuestionTopK is AnswerQuestion with an explicit top-k.
func (p *Pipeline) AnswerQuestionTopK(ctx context.Context, question string, idx *vector.Index, language string, topK int) (*models.Answer, error) {
	result, err := p.Retrieve(ctx, question, idx, topK)
	if err != nil {
		return nil, err
	}
	ans, err := p.composer.ComposeAndAnswer(ctx, question, result, language)
	if err != nil {
		return nil, err
	}
	ans.QueryTime += result.QueryTime
	return ans, nil
}
