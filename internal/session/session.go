package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/indexer"
	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/storage"
	"github.com/hyperjump/convotutor/internal/vector"
)

// Session holds the active index of one user session. Questions read whichever index is
// active when they start; a processing pass that succeeds replaces it for later questions.
type Session struct {
	id       string
	pipeline *Pipeline
	store    storage.SnapshotStore
	logger   *zap.Logger

	active atomic.Pointer[vector.Index]
	// buildMu serialises processing passes so the last one to finish is the last one started.
	buildMu sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists every successful build to store.
func WithStore(store storage.SnapshotStore) Option {
	return func(s *Session) { s.store = store }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session with no active index.
func New(pipeline *Pipeline, opts ...Option) *Session {
	s := &Session{id: uuid.NewString(), pipeline: pipeline, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Current returns the active index, or nil before the first successful processing pass.
func (s *Session) Current() *vector.Index { return s.active.Load() }

// Pipeline returns the pipeline the session runs on.
func (s *Session) Pipeline() *Pipeline { return s.pipeline }

// ProcessDocuments builds an index over docs and makes it the active index. When the
// batch fails as a whole the previous index stays active. A failure to persist the new
// snapshot is logged and does not undo the swap.
func (s *Session) ProcessDocuments(ctx context.Context, docs []*models.DocumentInput) (*indexer.BatchResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	res, err := s.pipeline.ProcessDocuments(ctx, docs)
	if err != nil {
		return res, err
	}
	prev := s.active.Swap(res.Index)
	s.logger.Info("session index replaced",
		zap.String("session", s.id),
		zap.String("index_id", res.Index.ID()),
		zap.Int("documents", res.Documents),
		zap.Int("units", res.Units),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("took", time.Since(start)))
	if prev != nil {
		s.logger.Debug("session previous index released", zap.String("index_id", prev.ID()))
	}

	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, res.Index); err != nil {
			s.logger.Warn("session snapshot save failed", zap.String("index_id", res.Index.ID()), zap.Error(err))
		} else {
			s.logger.Debug("session snapshot saved", zap.String("index_id", res.Index.ID()))
		}
	}
	return res, nil
}

// ProcessDirectories rebuilds the active index from every document found under dirs,
// replacing what was indexed before. Directories that cannot be read are skipped.
func (s *Session) ProcessDirectories(ctx context.Context, dirs []string, extensions []string, recursive bool) (*indexer.BatchResult, error) {
	var docs []*models.DocumentInput
	for _, dir := range dirs {
		found, err := indexer.CollectDirectory(dir, extensions, recursive)
		if err != nil {
			s.logger.Warn("session directory skipped", zap.String("dir", dir), zap.Error(err))
			continue
		}
		docs = append(docs, found...)
	}
	if len(docs) == 0 {
		return nil, models.InvalidParameter("no documents found in %d directories", len(dirs))
	}
	return s.ProcessDocuments(ctx, docs)
}

// AnswerQuestion answers against the index active at call time. topK 0 uses the default.
func (s *Session) AnswerQuestion(ctx context.Context, question, language string, topK int) (*models.Answer, error) {
	return s.pipeline.AnswerQuestionTopK(ctx, question, s.active.Load(), language, topK)
}

// Retrieve runs retrieval only against the active index.
func (s *Session) Retrieve(ctx context.Context, question string, topK int) (*models.RetrievalResult, error) {
	return s.pipeline.Retrieve(ctx, question, s.active.Load(), topK)
}

// Restore loads the latest stored snapshot into the session. It reports whether a
// snapshot was applied. A snapshot whose dimensions differ from the configured embedder
// is ignored, and so is any snapshot once an index is already active.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	idx, err := s.store.LoadLatest(ctx)
	if err != nil {
		return false, err
	}
	if idx == nil {
		return false, nil
	}
	if want := s.pipeline.indexer.Dimensions(); idx.Dimensions() != want {
		s.logger.Warn("session snapshot ignored",
			zap.String("index_id", idx.ID()),
			zap.Int("dimensions", idx.Dimensions()),
			zap.Int("embedder_dimensions", want))
		return false, nil
	}
	if !s.active.CompareAndSwap(nil, idx) {
		return false, nil
	}
	s.logger.Info("session snapshot restored", zap.String("index_id", idx.ID()), zap.Int("units", idx.Size()))
	return true, nil
}

// Status describes the active index.
type Status struct {
	SessionID  string    `json:"session_id"`
	Ready      bool      `json:"ready"`
	IndexID    string    `json:"index_id,omitempty"`
	Units      int       `json:"units"`
	Dimensions int       `json:"dimensions,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
}

// Status reports on the active index.
func (s *Session) Status() Status {
	st := Status{SessionID: s.id}
	idx := s.active.Load()
	if idx == nil {
		return st
	}
	st.Ready = true
	st.IndexID = idx.ID()
	st.Units = idx.Size()
	st.Dimensions = idx.Dimensions()
	st.BuiltAt = idx.BuiltAt()
	st.Sources = idx.Sources()
	return st
}
