package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docquery/internal/models"
	"docquery/internal/storage"
)

// Error categories reported alongside HTTP status codes.
const (
	categoryValidation    = "validation"
	categoryNotFound      = "not_found"
	categoryUnprocessable = "unprocessable"
	categoryUpstream      = "upstream"
	categoryInternal      = "internal"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// One extra byte past the limit is enough to detect oversized files
	// without buffering arbitrarily large bodies.
	maxBytes := s.config.Storage.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required", categoryValidation)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file", categoryValidation)
		return
	}

	s.logger.Debug("upload request",
		zap.String("filename", header.Filename),
		zap.Int("size_bytes", len(content)))

	doc, err := s.ingestor.Upload(r.Context(), header.Filename, content)
	if err != nil {
		s.respondForError(w, err, "upload failed")
		return
	}
	stats, err := s.index.Stats(r.Context())
	if err != nil {
		s.respondForError(w, err, "indexed but failed to read stats")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":         fmt.Sprintf("uploaded and indexed %s", doc.Filename),
		"filename":        doc.Filename,
		"chunk_count":     doc.ChunkCount,
		"total_documents": stats.TotalDocuments,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", categoryValidation)
		return
	}
	if err := req.Validate(s.config.RAG.DefaultTopK, s.config.RAG.MaxTopK); err != nil {
		s.respondForError(w, err, "invalid query")
		return
	}

	s.logger.Debug("query request", zap.Int("top_k", req.TopK))

	ans, err := s.answers.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.respondForError(w, err, "query failed")
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if token := s.config.Server.MonitorToken; token != "" {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != token {
			s.respondError(w, http.StatusUnauthorized, "invalid monitor token", categoryValidation)
			return
		}
	}

	stats, err := s.index.Stats(r.Context())
	if err != nil {
		s.respondForError(w, err, "stats failed")
		return
	}
	if bytes, err := storage.DiskUsageBytes(s.config.Storage.UploadDir, s.config.Storage.DatabasePath); err == nil {
		stats.StorageBytes = bytes
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	s.logger.Debug("delete document request", zap.String("filename", filename))

	count, err := s.ingestor.Delete(r.Context(), filename)
	if err != nil {
		s.respondForError(w, err, "delete failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        fmt.Sprintf("deleted %s", filename),
		"filename":       filename,
		"chunks_removed": count,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("reset request")
	if err := s.ingestor.Reset(r.Context()); err != nil {
		s.respondForError(w, err, "reset failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "index reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"app":     s.config.AppName,
		"version": s.config.AppVersion,
	})
}

// respondForError maps sentinel errors to status codes and categories.
func (s *Server) respondForError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error(), categoryValidation)
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error(), categoryNotFound)
	case errors.Is(err, models.ErrUnprocessable):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error(), categoryUnprocessable)
	case errors.Is(err, models.ErrUpstream):
		s.logger.Error(logMsg, zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error(), categoryUpstream)
	default:
		s.logger.Error(logMsg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error(), categoryInternal)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, category string) {
	s.respondJSON(w, status, map[string]string{"error": message, "category": category})
}
