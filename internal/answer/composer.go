package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/generation"
	"github.com/hyperjump/convotutor/internal/models"
)

// Composer builds prompts from retrieval results and sends them to a Generator.
type Composer struct {
	generator generation.Generator
	logger    *zap.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// NewComposer returns a composer backed by generator.
func NewComposer(generator generation.Generator, opts ...ComposerOption) *Composer {
	c := &Composer{generator: generator}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComposeAndAnswer sends one prompt built from question, result and language and returns
// the model's reply unmodified. The request is made even when result has no hits, with an
// empty context section. Generator failures are reported as models.ErrGenerationService
// and never retried.
func (c *Composer) ComposeAndAnswer(ctx context.Context, question string, result *models.RetrievalResult, language string) (*models.Answer, error) {
	start := time.Now()
	prompt := BuildPrompt(question, result, language)
	if c.logger != nil {
		c.logger.Debug("composer sending prompt",
			zap.String("language", prompt.Language),
			zap.Int("context_len", len(prompt.Context)))
	}
	text, err := c.generator.Generate(ctx, prompt.Text)
	if err != nil {
		if !errors.Is(err, models.ErrGenerationService) {
			err = fmt.Errorf("%w: %w", models.ErrGenerationService, err)
		}
		return nil, err
	}
	var sources []*models.RetrievalHit
	if result != nil {
		sources = result.Hits
	}
	if sources == nil {
		sources = []*models.RetrievalHit{}
	}
	return &models.Answer{
		Question:  question,
		Language:  prompt.Language,
		Text:      text,
		Sources:   sources,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
