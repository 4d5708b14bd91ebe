// Package core provides the HTTP chassis for the LeadLoop sweep service.
// It builds a chi router carrying the cross-cutting middleware chain
// (panic recovery, request correlation, structured logging, trigger
// authentication) in front of the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadloop/internal/config"
)

// Server bundles the router with its cross-cutting dependencies so tests can
// inject their own configuration and probes.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	// HealthProbes are checked concurrently by GET /health. Each probe
	// represents a dependency (database, queue) the sweep cannot run without.
	HealthProbes []HealthProbe

	// RouteRegistrars mount domain handler routes onto the authenticated
	// route group. Populated by the entry point to avoid an import cycle
	// between core and the handler packages.
	RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer validates critical dependencies and prepares the router. The
// caller mounts routes via MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown logs the termination; connection pools are owned and closed by
// the entry point.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
