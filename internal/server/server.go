// Package server provides the HTTP API for rewind.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/admin"
	"github.com/hyperjump/rewind/internal/archive"
	"github.com/hyperjump/rewind/internal/config"
	"github.com/hyperjump/rewind/internal/control"
	"github.com/hyperjump/rewind/internal/search"
)

// CaptureControl pauses and resumes capture. *control.Controller implements it.
type CaptureControl interface {
	State() control.State
	Pause() error
	Resume() error
}

// Wiper deletes all captured data. *admin.Wiper implements it.
type Wiper interface {
	Wipe(ctx context.Context) (*admin.WipeReport, error)
}

// StatusReporter summarizes the system. *admin.Inspector implements it.
type StatusReporter interface {
	Status(ctx context.Context) (*admin.Status, error)
}

// Server is the HTTP server for the rewind API.
type Server struct {
	engine  *search.Engine
	capture CaptureControl
	wiper   Wiper
	status  StatusReporter
	archive *archive.Archive
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. arch may be nil when frames
// are not retained.
func NewServer(
	engine *search.Engine,
	capture CaptureControl,
	wiper Wiper,
	status StatusReporter,
	arch *archive.Archive,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		capture: capture,
		wiper:   wiper,
		status:  status,
		archive: arch,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5, "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/records", s.handleRecent)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Get("/records/{id}/image", s.handleRecordImage)
		r.Get("/capture", s.handleCaptureState)
		r.Post("/capture", s.handleCaptureControl)
		r.Get("/status", s.handleStatus)
		r.Post("/wipe", s.handleWipe)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request through zap at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
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
