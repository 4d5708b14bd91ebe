// Package handlers contains the HTTP handler implementations for the
// LeadLoop sweep service.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leadloop/internal/core"
	"leadloop/internal/sweep"
	"leadloop/internal/types"
)

// errCodeValidationInvalidTime is local to the handler layer; the prefix
// keeps the 400 mapping in types.ErrorCode.HTTPStatus.
const errCodeValidationInvalidTime types.ErrorCode = "validation_invalid_timestamp"

// SweepRunner is the orchestrator contract the cron handler depends on.
// Defined locally to avoid tight coupling per the handler injection pattern.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) *sweep.Report
}

// CronHandler exposes the sweep trigger endpoint called by the external
// scheduler. Authentication happens in the middleware chain; by the time a
// request reaches this handler it carries a valid trigger secret.
type CronHandler struct {
	runner SweepRunner
	loc    *time.Location
	logger *slog.Logger
}

// NewCronHandler creates a CronHandler.
func NewCronHandler(runner SweepRunner, loc *time.Location, logger *slog.Logger) *CronHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{runner: runner, loc: loc, logger: logger}
}

// RegisterRoutes mounts the trigger endpoint. Both GET and POST are accepted
// because hosted cron providers differ in which method they emit.
func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/cron/run", h.HandleRun)
	r.Post("/v1/cron/run", h.HandleRun)
}

// HandleRun executes one full sweep pass synchronously and returns the
// per-task report. The optional "at" query parameter (RFC 3339) overrides
// the reference time for operational replays.
func (h *CronHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				errCodeValidationInvalidTime,
				"at must be an RFC 3339 timestamp",
				err,
			))
			return
		}
		now = parsed.In(h.loc)
		h.logger.InfoContext(r.Context(), "sweep reference time overridden", "at", now)
	}

	report := h.runner.Run(r.Context(), now)

	core.JSON(w, r, http.StatusOK, report)
}
