package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// AskRequest is the query boundary request.
type AskRequest struct {
	Question string     `json:"question"`
	Options  AskOptions `json:"options"`
}

// AskOptions mirrors domain.AskOptions with the language as free text.
type AskOptions struct {
	UseWebSearch bool   `json:"use_web_search,omitempty"`
	Language     string `json:"language,omitempty"`
	K            int    `json:"k,omitempty"`
	Diversity    *bool  `json:"diversity,omitempty"`
}

// IngestRequest ingests a file already on the server's filesystem.
type IngestRequest struct {
	Path string `json:"path"`
}

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.cfg.Version})
}

// Query boundary

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	lang, err := domain.ParseLanguage(req.Options.Language)
	if err != nil {
		writeFailure(w, err)
		return
	}

	answer, err := s.services.Ask.Ask(r.Context(), req.Question, domain.AskOptions{
		UseWebSearch: req.Options.UseWebSearch,
		Language:     lang,
		K:            req.Options.K,
		Diversity:    req.Options.Diversity,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuality(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.services.Ask.Quality())
}

// Ingestion boundary

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var (
		path string
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		path, err = s.saveUpload(w, r)
	} else {
		var req IngestRequest
		if err = decodeJSON(w, r, &req); err == nil {
			path = req.Path
			if strings.TrimSpace(path) == "" {
				err = fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
			}
		}
	}
	if err != nil {
		writeFailure(w, err)
		return
	}

	res, err := s.services.Ingestion.Ingest(r.Context(), path)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// saveUpload stores the "file" form field in the upload directory under
// its base name, replacing any earlier upload of the same name.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	if s.cfg.UploadDir == "" {
		return "", fmt.Errorf("%w: uploads are disabled", domain.ErrNotImplemented)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid filename %q", domain.ErrInvalidInput, header.Filename)
	}
	if !s.services.Ingestion.Supports(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(name))
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o700); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	dst := filepath.Join(s.cfg.UploadDir, name)
	tmp, err := os.CreateTemp(s.cfg.UploadDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: writing upload: %v", domain.ErrInvalidInput, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}
	logger.Debug("stored upload %s", dst)
	return dst, nil
}

// Management boundary

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.services.Management.ListFiles(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if files == nil {
		files = []domain.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Management.DeleteFile(r.Context(), mux.Vars(r)["filename"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Management.Stats(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrCorruptFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrIndexCorruption):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure writes the {status: "error", message} shape.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, domain.NewErrorResponse(err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorResponse{Status: domain.StatusError, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
