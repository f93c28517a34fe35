// Package translate wraps an external translation service. It never returns errors:
// every failure is logged and reported through the ok result.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"
)

// AutoDetect as the source language lets the service detect it.
const AutoDetect = "auto"

// Backend performs one translation. src is empty for auto-detection.
type Backend interface {
	Translate(ctx context.Context, text, src, dest string) (string, error)
}

// GoogleBackend calls the Google Cloud Translation v2 REST API.
type GoogleBackend struct {
	svc *translatev2.Service
}

// NewGoogleBackend creates a backend authenticated with apiKey. endpoint overrides the
// service URL when non-empty.
func NewGoogleBackend(ctx context.Context, apiKey, endpoint string, opts ...option.ClientOption) (*GoogleBackend, error) {
	if apiKey == "" {
		return nil, errors.New("translation API key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate service: %w", err)
	}
	return &GoogleBackend{svc: svc}, nil
}

// Translate sends text as plain text (no HTML unescaping of the reply).
func (g *GoogleBackend) Translate(ctx context.Context, text, src, dest string) (string, error) {
	call := g.svc.Translations.List([]string{text}, dest).Format("text").Context(ctx)
	if src != "" {
		call = call.Source(src)
	}
	resp, err := call.Do()
	if err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 {
		return "", errors.New("empty translation response")
	}
	return resp.Translations[0].TranslatedText, nil
}

// Translator validates language codes and delegates to a Backend.
type Translator struct {
	backend Backend
	logger  *zap.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger that receives translation failures.
func WithLogger(l *zap.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// New returns a Translator. A nil backend makes every call fail closed.
func New(backend Backend, opts ...Option) *Translator {
	t := &Translator{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns the translation of text from src to dest. ok is false when the
// language codes are not valid BCP 47 tags, no backend is configured, or the service
// fails; the returned text is then empty and the cause has been logged.
// src may be empty or AutoDetect.
func (t *Translator) Translate(ctx context.Context, text, src, dest string) (translated string, ok bool) {
	src, dest = strings.TrimSpace(src), strings.TrimSpace(dest)
	srcTag, err := parseSource(src)
	if err != nil {
		t.fail("invalid source language", src, dest, err)
		return "", false
	}
	destTag, err := language.Parse(dest)
	if err != nil {
		t.fail("invalid target language", src, dest, err)
		return "", false
	}
	if t.backend == nil {
		t.fail("translation unavailable", src, dest, errors.New("no translation backend configured"))
		return "", false
	}
	out, err := t.backend.Translate(ctx, text, srcTag, destTag.String())
	if err != nil {
		t.fail("translation failed", src, dest, err)
		return "", false
	}
	return out, true
}

func parseSource(src string) (string, error) {
	if src == "" || strings.EqualFold(src, AutoDetect) {
		return "", nil
	}
	tag, err := language.Parse(src)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

func (t *Translator) fail(msg, src, dest string, err error) {
	fields := []zap.Field{zap.String("source", src), zap.String("target", dest), zap.Error(err)}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		fields = append(fields, zap.Int("status", gerr.Code))
	}
	t.logger.Warn(msg, fields...)
}
