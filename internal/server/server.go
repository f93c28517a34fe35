// Package server provides the HTTP API for ConvoTutor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/config"
	"github.com/hyperjump/convotutor/internal/session"
	"github.com/hyperjump/convotutor/internal/storage"
	"github.com/hyperjump/convotutor/internal/translate"
)

// WatchService manages the watched inbox directories. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the ConvoTutor API.
type Server struct {
	session    *session.Session
	translator *translate.Translator
	store      storage.SnapshotStore
	config     *config.Config
	logger     *zap.Logger
	validate   *validator.Validate
	server     *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithStore exposes snapshot statistics on the status endpoint.
func WithStore(store storage.SnapshotStore) Option {
	return func(s *Server) { s.store = store }
}

// WithWatcher enables the watch directory endpoints. Directory changes are saved to
// configPath when it is non-empty.
func WithWatcher(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(sess *session.Session, tr *translate.Translator, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		session:    sess,
		translator: tr,
		config:     cfg,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		// Uploads embed whole batches and can run long.
		r.Post("/documents", s.handleProcessDocuments)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(120 * time.Second))
			r.Post("/ask", s.handleAsk)
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/translate", s.handleTranslate)
			r.Get("/languages", s.handleLanguages)
			r.Get("/status", s.handleStatus)
			r.Get("/watch/directories", s.handleWatchDirectoriesList)
			r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
			r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
