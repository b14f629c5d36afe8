// Package core provides the HTTP chassis for the fleet geospatial engine.
// It creates a chi router, applies cross-cutting middleware (panic recovery,
// request IDs, logging, compression, metrics) and offers the response and
// validation helpers shared by the reporting handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration)
}

// RouteRegistrar mounts a group of endpoints under /v1. Handler packages
// provide registrars so that core does not import them.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the router and its shared dependencies.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are applied in order when MountRoutes runs.
	V1RouteRegistrars []RouteRegistrar

	// Closers are released by Shutdown in reverse order.
	Closers []func()

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. The caller populates registrars and probes, then calls
// MountRoutes.
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

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases the registered resources in reverse order of
// registration.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for i := len(s.Closers) - 1; i >= 0; i-- {
		s.Closers[i]()
	}
	s.Closers = nil
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
