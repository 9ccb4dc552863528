// Package core provides the API chassis for the PostureWatch alert API.
// It creates a chi router compatible with both standard HTTP (for local dev)
// and AWS Lambda Proxy Integration (via chiadapter). It applies logging,
// authentication, CORS and error formatting before requests reach the
// domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"posturewatch/internal/config"
)

// MetricsCollector records API telemetry. The Prometheus collector in
// internal/metrics implements it.
type MetricsCollector interface {
	// RecordRequest records latency and count for one request. endpoint is
	// the chi route pattern, not the raw path, to keep cardinality bounded.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes under a version prefix.
type RouteRegistrar func(r chi.Router)

// Server holds every dependency of the API so tests can inject fakes.
type Server struct {
	Config        *config.APIConfig
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are mounted under /v1 by MountRoutes. They are filled
	// by main so that core does not import the handler packages.
	V1RouteRegistrars []RouteRegistrar

	// Extra top-level routes such as /metrics.
	RootHandlers map[string]http.Handler

	// Closers run on Shutdown in registration order.
	Closers []func(context.Context) error

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty router.
// The caller mounts routes (MountRoutes) after filling the optional fields.
func NewServer(cfg *config.APIConfig, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:       cfg,
		Logger:       logger,
		Validator:    NewValidator(logger),
		RootHandlers: map[string]http.Handler{},
		router:       chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
// Used by http.Server (local) and chiadapter.New (Lambda).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered closers. Every closer runs even if an earlier
// one fails; the failures are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c(ctx); err != nil {
			s.Logger.Error("error closing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
