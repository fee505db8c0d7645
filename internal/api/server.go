// Package api implements the results service HTTP server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/api/handler"
	"github.com/minleaf/sieve/internal/api/middleware"
	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/storage/report"
)

// Config holds server configuration
type Config struct {
	Host     string
	Port     int
	APIToken string
}

// Dependencies holds the stores and instruments the server serves from.
type Dependencies struct {
	Reports report.Store
	Metrics *metrics.Registry
}

// Server is the results service HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Reports == nil {
		return nil, fmt.Errorf("api: report store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)

	// Request logging and metrics wrap the whole mux; auth wraps only
	// the ingest route.
	s.httpServer.Handler = metrics.LoggingMiddleware(logger)(
		metrics.HTTPMiddleware(deps.Metrics)(mux))

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	screening := handler.NewScreeningHandler(deps.Reports, deps.Metrics)
	auth := middleware.BearerAuth(cfg.APIToken)

	s.mux.Handle("POST /api/ingest", auth(http.HandlerFunc(screening.Ingest)))
	s.mux.HandleFunc("GET /api/screening/latest", screening.Latest)
	s.mux.HandleFunc("GET /api/screening/dates", screening.Dates)
	s.mux.HandleFunc("GET /api/screening/{date}", screening.ByDate)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
