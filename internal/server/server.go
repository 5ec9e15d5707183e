// Package server provides the HTTP API for redline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/redline/internal/config"
	"github.com/hyperjump/redline/internal/metrics"
	"github.com/hyperjump/redline/internal/pipeline"
	"github.com/hyperjump/redline/internal/storage"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 60 * time.Second

// FileResolver maps a stored file name to its path on disk.
type FileResolver interface {
	Path(name string) (string, error)
}

// Server is the HTTP server for the redline API.
type Server struct {
	pipeline  *pipeline.Pipeline
	artifacts FileResolver
	reports   FileResolver // optional
	storage   storage.Store
	config    *config.Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts the Prometheus endpoint at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a server with the given dependencies. reports and store may be nil.
func NewServer(
	p *pipeline.Pipeline,
	artifacts FileResolver,
	reports FileResolver,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:  p,
		artifacts: artifacts,
		reports:   reports,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/preview", s.handlePreview)
		r.Post("/process", s.handleProcess)
		r.Post("/download-edit", s.handleDownloadEdit)
		r.Get("/downloads/{name}", s.handleDownload)
		r.Get("/reports/{name}", s.handleReport)
		r.Get("/revisions", s.handleListRevisions)
		r.Get("/revisions/{artifact}", s.handleGetRevision)
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
