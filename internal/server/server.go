// Package server provides the HTTP API for the document question answering
// service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"docquery/internal/answer"
	"docquery/internal/config"
	"docquery/internal/ingest"
	"docquery/internal/models"
)

// StatsSource reports aggregate statistics over the indexed corpus.
type StatsSource interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// Server is the HTTP server for the document API.
type Server struct {
	ingestor *ingest.Ingestor
	answers  *answer.Service
	index    StatsSource
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingestor *ingest.Ingestor,
	answers *answer.Service,
	idx StatsSource,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor: ingestor,
		answers:  answers,
		index:    idx,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		// Health stays outside the admission limit so probes keep
		// answering while the API is saturated.
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			// Upload and query do remote embedding and completion calls;
			// cap how many run at once.
			r.Use(middleware.Throttle(s.config.Server.Concurrency))
			r.Use(middleware.Timeout(120 * time.Second))

			r.Post("/upload", s.handleUpload)
			r.Post("/query", s.handleQuery)
			r.Get("/stats", s.handleStats)
			r.Delete("/documents/{filename}", s.handleDeleteDocument)
			r.Post("/reset", s.handleReset)
		})
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
