package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/answer"
	"github.com/hyperjump/convotutor/internal/config"
	"github.com/hyperjump/convotutor/internal/embedding"
	"github.com/hyperjump/convotutor/internal/generation"
	"github.com/hyperjump/convotutor/internal/indexer"
	"github.com/hyperjump/convotutor/internal/search"
	"github.com/hyperjump/convotutor/internal/session"
	"github.com/hyperjump/convotutor/internal/storage"
	"github.com/hyperjump/convotutor/internal/translate"
)

// Components holds initialized services.
type Components struct {
	Embedder   embedding.Embedder
	Store      storage.SnapshotStore
	Session    *session.Session
	Translator *translate.Translator
}

// Close releases the embedder and the snapshot store.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func embeddingSettings(cfg *config.Config) embedding.Settings {
	return embedding.Settings{
		Provider:      cfg.Embedding.Provider,
		ModelPath:     cfg.Embedding.ModelPath,
		TokenizerPath: cfg.Embedding.TokenizerPath,
		ONNXOutput:    cfg.Embedding.ONNXOutput,
		ModelName:     cfg.Embedding.ModelName,
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey(),
		Dimensions:    cfg.Embedding.Dimensions,
		MaxTokens:     cfg.Embedding.MaxTokens,
		CacheSize:     cfg.Embedding.CacheSize,
	}
}

func generationConfig(cfg *config.Config) generation.Config {
	return generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  cfg.Generation.APIKey(),
		Params: generation.Params{
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.TemperatureOrDefault(),
			MaxTokens:   cfg.Generation.MaxTokens,
			TopP:        cfg.Generation.TopPOrDefault(),
			Stream:      cfg.Generation.Stream,
		},
	}
}

// initializeComponents wires the pipeline from cfg. A missing generation or translation
// key is not fatal: questions then fail with a generation error and translations fail
// closed, while processing and retrieval keep working.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.New(ctx, embeddingSettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: embedder}

	var sessOpts []session.Option
	sessOpts = append(sessOpts, session.WithLogger(logger))
	if cfg.Storage.SnapshotPath != "" {
		store, err := storage.NewSQLiteStore(cfg.Storage.SnapshotPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		c.Store = store
		sessOpts = append(sessOpts, session.WithStore(store))
	}

	var generator generation.Generator
	genOpts := []generation.ClientOption{}
	if debug {
		genOpts = append(genOpts, generation.WithLogger(logger))
	}
	client, err := generation.NewOpenAIClient(ctx, generationConfig(cfg), genOpts...)
	if err != nil {
		logger.Warn("generation backend unavailable",
			zap.String("api_key_env", cfg.Generation.APIKeyEnv),
			zap.Error(err))
		generator = generation.Unavailable(err)
	} else {
		generator = client
	}

	idxOpts := []indexer.IndexerOption{indexer.WithConcurrency(cfg.Embedding.BatchSize, cfg.Embedding.Workers)}
	composerOpts := []answer.ComposerOption{}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
		composerOpts = append(composerOpts, answer.WithLogger(logger))
	}
	pipeline := session.NewPipeline(
		indexer.NewIndexer(embedder, nil, idxOpts...),
		search.NewRetriever(embedder, cfg.Retrieval.TopK),
		answer.NewComposer(generator, composerOpts...),
		cfg.Retrieval.TopK,
	)
	c.Session = session.New(pipeline, sessOpts...)

	var backend translate.Backend
	if key := cfg.Translation.APIKey(); key != "" {
		gb, err := translate.NewGoogleBackend(ctx, key, cfg.Translation.Endpoint)
		if err != nil {
			logger.Warn("translation backend unavailable", zap.Error(err))
		} else {
			backend = gb
		}
	}
	c.Translator = translate.New(backend, translate.WithLogger(logger))

	logger.Debug("components initialized",
		zap.String("session", c.Session.ID()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.Bool("snapshots", c.Store != nil),
		zap.Bool("translation", backend != nil))
	return c, nil
}
