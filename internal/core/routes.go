package core

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the global middleware chain, the public health
// endpoint, and the authenticated trigger routes.
//
// Middleware order matters:
//  1. Recoverer   - outermost so all panics are caught.
//  2. RequestID   - correlation ID before anything logs.
//  3. RequestLogger
//  4. TriggerAuth - only on the trigger group; /health stays public.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.TriggerAuthMiddleware)
		for _, registrar := range s.RouteRegistrars {
			registrar(r)
		}
	})
}
