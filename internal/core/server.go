// Package core provides the HTTP chassis for the BloomWatch API. It builds
// the chi router and enforces cross-cutting concerns -- request identity,
// structured logging, panic recovery, timeouts, API-key auth, and rate
// limiting -- before requests reach the domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/config"
	"bloomwatch/internal/types"
)

// MetricsCollector is the slice of the metrics surface the chassis needs.
// Implementations record request latency and count under the
// types.MetricAPILatency name; the full collector lives in internal/metrics.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server bundles the dependencies of the BloomWatch API. Everything is an
// exported field so tests and entry points can inject exactly what a given
// scenario needs; nil optional fields (Metrics, Limiter) disable the
// corresponding middleware.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// Limiter guards expensive routes. Nil disables rate limiting.
	Limiter types.RateLimiter

	// HealthProbes back GET /readyz. Register one per hard dependency
	// (database, queue) before mounting routes.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. The entry point
	// populates this so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	closers []io.Closer
	router  *chi.Mux
}

// NewServer validates the required dependencies and prepares the router.
// Routes are mounted separately (MountRoutes) so tests can customize
// registration before the middleware chain is frozen.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// RegisterCloser adds a resource (database pool, cache, queue client) to be
// closed during Shutdown. Closers run in reverse registration order so
// consumers shut down before the resources they depend on.
func (s *Server) RegisterCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Shutdown releases server-owned resources after the listener has drained.
// All closers run even if an earlier one fails; the combined error is
// returned so the entry point can log it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.Logger.Error("error closing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing server resources: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
