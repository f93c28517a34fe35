// Package generation sends composed prompts to a chat-completion backend.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/models"
)

// Generator turns one user prompt into one reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the sampling parameters sent with every request.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
	// Stream requests incremental deltas; they are joined before Generate returns.
	Stream bool
}

// Config describes an OpenAI-compatible chat endpoint (Groq by default).
type Config struct {
	BaseURL string
	APIKey  string
	Params  Params
}

// Client is a single-turn Generator over an eino chat model. Failures are returned
// as models.ErrGenerationService and never retried.
type Client struct {
	chat   model.BaseChatModel
	params Params
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps an existing chat model.
func NewClient(chat model.BaseChatModel, params Params, opts ...ClientOption) *Client {
	c := &Client{chat: chat, params: params}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewOpenAIClient connects to the OpenAI-compatible endpoint described by cfg.
func NewOpenAIClient(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", models.ErrGenerationService)
	}
	chat, err := openaimodel.NewChatModel(ctx, &openaimodel.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Params.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrGenerationService, err)
	}
	return NewClient(chat, cfg.Params, opts...), nil
}

// Params returns the sampling parameters of the client.
func (c *Client) Params() Params { return c.params }

// Generate sends prompt as the only user message and returns the reply text verbatim.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	opts := c.options()
	if c.logger != nil {
		c.logger.Debug("generation request",
			zap.String("model", c.params.Model),
			zap.Bool("stream", c.params.Stream),
			zap.Int("prompt_len", len(prompt)))
	}
	if c.params.Stream {
		return c.stream(ctx, msgs, opts)
	}
	msg, err := c.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrGenerationService, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty response", models.ErrGenerationService)
	}
	return msg.Content, nil
}

// stream concatenates the content deltas in arrival order.
func (c *Client) stream(ctx context.Context, msgs []*schema.Message, opts []model.Option) (string, error) {
	sr, err := c.chat.Stream(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrGenerationService, err)
	}
	defer sr.Close()
	var b strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: stream: %w", models.ErrGenerationService, err)
		}
		if chunk != nil {
			b.WriteString(chunk.Content)
		}
	}
	return b.String(), nil
}

func (c *Client) options() []model.Option {
	var opts []model.Option
	if c.params.Model != "" {
		opts = append(opts, model.WithModel(c.params.Model))
	}
	opts = append(opts, model.WithTemperature(c.params.Temperature), model.WithTopP(c.params.TopP))
	if c.params.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.params.MaxTokens))
	}
	return opts
}

type unavailable struct{ err error }

// Unavailable returns a Generator that fails every request with err, wrapped as
// models.ErrGenerationService. It stands in when no backend could be configured.
func Unavailable(err error) Generator {
	return unavailable{err: err}
}

func (u unavailable) Generate(context.Context, string) (string, error) {
	if errors.Is(u.err, models.ErrGenerationService) {
		return "", u.err
	}
	return "", fmt.Errorf("%w: %w", models.ErrGenerationService, u.err)
}
