// Package server provides the HTTP API for seek search sessions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/config"
	"github.com/hyperjump/seek/internal/session"
	"github.com/hyperjump/seek/internal/storage"
)

// WatchService reports the directories watched for stale results. Optional.
type WatchService interface {
	Roots() []string
}

// Server is the HTTP server for the seek API.
type Server struct {
	sessions *session.Manager
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	watch    WatchService
	started  time.Time
	server   *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	sessions *session.Manager,
	storage storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: sessions,
		storage:  storage,
		config:   cfg,
		logger:   logger,
		watch:    watch,
		started:  time.Now(),
	}
}

// Handler returns the router with all API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/restore", s.handleRestoreSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/cancel", s.handleCancel)
			r.Get("/snapshot", s.handleSnapshot)
			r.Post("/select", s.handleSelect)
		})
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/recent", s.handleRecentQueries)
		r.Delete("/recent", s.handleClearRecentQueries)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
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
