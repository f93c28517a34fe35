package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/config"
	"github.com/hyperjump/convotutor/internal/models"
)

// NoDocumentWarning accompanies answers given before any document was processed.
const NoDocumentWarning = "Please upload and process a PDF document first."

type askRequest struct {
	Question string `json:"question" validate:"required"`
	Language string `json:"language" validate:"omitempty,max=64"`
	TopK     int    `json:"top_k" validate:"gte=0,lte=100"`
}

type askResponse struct {
	*models.Answer
	Warning string `json:"warning,omitempty"`
}

type retrieveRequest struct {
	Question string `json:"question" validate:"required"`
	TopK     int    `json:"top_k" validate:"gte=0,lte=100"`
}

type retrieveResponse struct {
	*models.RetrievalResult
	Context string `json:"context"`
	Warning string `json:"warning,omitempty"`
}

type translateRequest struct {
	Text   string `json:"text" validate:"required"`
	Source string `json:"source"`
	Target string `json:"target" validate:"required"`
}

type translateResponse struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

func (s *Server) handleProcessDocuments(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", s.config.Server.MaxUploadMB))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	docs := make([]*models.DocumentInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("open %s: %v", fh.Filename, err))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		docs = append(docs, &models.DocumentInput{Name: filepath.Base(fh.Filename), Content: content})
	}
	s.logger.Debug("process documents request", zap.Int("files", len(docs)))

	res, err := s.session.ProcessDocuments(r.Context(), docs)
	resp := res.Summary()
	if err != nil {
		s.logger.Error("process documents failed", zap.Error(err))
		if len(resp.Failed) > 0 {
			s.respondJSON(w, statusFor(err), resp)
			return
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	s.logger.Debug("ask request", zap.String("language", req.Language), zap.Int("top_k", req.TopK))
	ready := s.session.Current() != nil
	ans, err := s.session.AnswerQuestion(r.Context(), req.Question, req.Language, req.TopK)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	resp := askResponse{Answer: ans}
	if !ready {
		resp.Warning = NoDocumentWarning
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	ready := s.session.Current() != nil
	res, err := s.session.Retrieve(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	resp := retrieveResponse{RetrievalResult: res, Context: res.Context()}
	if !ready {
		resp.Warning = NoDocumentWarning
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	text, ok := s.translator.Translate(r.Context(), req.Text, req.Source, req.Target)
	s.respondJSON(w, http.StatusOK, translateResponse{Text: text, OK: ok})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"languages": models.SupportedLanguages,
		"default":   models.DefaultLanguage,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"index": s.session.Status(),
	}
	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"top_k":                s.config.Retrieval.TopK,
		"generation_model":     s.config.Generation.Model,
		"generation_stream":    s.config.Generation.Stream,
		"snapshot_path":        s.config.Storage.SnapshotPath,
	}
	resp["config"] = configInfo
	if s.store != nil {
		st, err := s.store.Stats(r.Context())
		if err != nil {
			s.logger.Error("status: snapshot stats failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["snapshot"] = st
		resp["disk_usage_bytes"] = st.DiskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path" validate:"required"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation. On failure it
// writes a 400 response and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
			}
			s.respondError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
			return false
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDocumentParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrGenerationService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
