// Package server exposes the publish pipeline over HTTP: one publish
// endpoint, a health check, and Prometheus metrics. Request parsing, secret
// verification, and field validation all happen here, strictly before the
// pipeline is invoked.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagepub/internal/config"
	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/events"
	"git.home.luguber.info/inful/pagepub/internal/evidence"
	"git.home.luguber.info/inful/pagepub/internal/generate"
	"git.home.luguber.info/inful/pagepub/internal/publish"
)

// Publisher is the pipeline surface the server depends on.
type Publisher interface {
	Publish(ctx context.Context, task publish.Task) (*publish.Result, error)
	FetchExisting(ctx context.Context, name string) (string, bool)
	UpdateReadme(ctx context.Context, name, content string)
}

// Notifier delivers the evaluation callback.
type Notifier interface {
	Notify(ctx context.Context, url string, payload any) bool
}

// EvidenceSink records publish outcomes, fire-and-forget.
type EvidenceSink interface {
	Submit(record evidence.Record)
}

// Deps bundles the collaborators a Server needs. Events may be nil (the
// publisher is nil-safe); the rest are required.
type Deps struct {
	Pipeline  Publisher
	Generator generate.Service
	Notifier  Notifier
	Evidence  EvidenceSink
	Events    *events.Publisher
	Metrics   http.Handler // /metrics endpoint; nil disables it
}

// Server is the HTTP boundary of the service.
type Server struct {
	cfg          *config.Config
	deps         Deps
	logger       *slog.Logger
	errorAdapter *pperrors.HTTPErrorAdapter
	httpServer   *http.Server
	startTime    time.Time
}

// New wires a server. Routes are registered immediately; nothing listens
// until Start.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:          cfg,
		deps:         deps,
		logger:       logger,
		errorAdapter: pperrors.NewHTTPErrorAdapter(logger),
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api-endpoint", s.handlePublish)
	mux.HandleFunc("/health", s.handleHealth)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: Chain(logger, s.errorAdapter)(mux),
		// No WriteTimeout: a publish blocks for up to the availability
		// poll timeout before it can answer.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", slog.Int("port", s.cfg.Server.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the wired handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorAdapter.WriteErrorResponse(w, pperrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", http.MethodGet))
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: versionString(),
		Uptime:  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}
