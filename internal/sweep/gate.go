package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/types"
)

// Runner executes one sweep task and reports its outcome. Implementations
// must treat now as the sweep's reference instant instead of calling
// time.Now, so backfill invocations behave deterministically.
type Runner interface {
	Run(ctx context.Context, now time.Time) TaskResult
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, now time.Time) TaskResult

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, now time.Time) TaskResult {
	return f(ctx, now)
}

// CronStateStore is the persistence contract for the daily-once guard.
type CronStateStore interface {
	Get(ctx context.Context, taskName string) (*types.CronState, error)
	Upsert(ctx context.Context, state *types.CronState) error
	Claim(ctx context.Context, taskName string, runDate string, now time.Time) (bool, error)
}

// Window is an inclusive hour-of-day range in the sweep timezone.
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether the hour falls inside the window.
func (w Window) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:00-%02d:59", w.StartHour, w.EndHour)
}

// DailyGate wraps a Runner with the hour-of-day window and the daily-once
// CronState guard. The window is checked first, unconditionally: outside the
// window the task is skipped regardless of what CronState says.
//
// The guard itself is best-effort. The atomic claim closes the
// read-then-write race between passes sharing a database, but two sweeps
// hitting different replicas could still both run; the cost of a double-run
// is a duplicate reminder, not data corruption.
//
// The claim is taken before the inner runner executes, so a run that fails
// mid-way still consumes the day; the task returns with the next calendar
// day rather than retrying inside the same window.
type DailyGate struct {
	name   string
	window Window
	states CronStateStore
	loc    *time.Location
	inner  Runner
	logger *slog.Logger
}

// NewDailyGate creates a DailyGate around the inner runner.
func NewDailyGate(name string, window Window, states CronStateStore, loc *time.Location, inner Runner, logger *slog.Logger) *DailyGate {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyGate{
		name:   name,
		window: window,
		states: states,
		loc:    loc,
		inner:  inner,
		logger: logger,
	}
}

// Run applies the window and guard, then delegates to the inner runner. After
// a real run it writes today's date and the run's details back to CronState.
func (g *DailyGate) Run(ctx context.Context, now time.Time) TaskResult {
	local := now.In(g.loc)
	if !g.window.Contains(local.Hour()) {
		return skipped(fmt.Sprintf("outside run window %s", g.window))
	}

	date := local.Format("2006-01-02")

	state, err := g.states.Get(ctx, g.name)
	if err != nil {
		return failure(fmt.Errorf("reading cron state for %s: %w", g.name, err))
	}
	if state != nil && state.LastRunDate == date {
		return skipped("Already processed today")
	}

	claimed, err := g.states.Claim(ctx, g.name, date, now)
	if err != nil {
		return failure(fmt.Errorf("claiming cron state for %s: %w", g.name, err))
	}
	if !claimed {
		// Another pass won the date between our read and the claim.
		return skipped("Already processed today")
	}

	res := g.inner.Run(ctx, now)

	summary, err := json.Marshal(res.Details)
	if err != nil {
		summary = []byte("{}")
	}
	if err := g.states.Upsert(ctx, &types.CronState{
		TaskName:    g.name,
		LastRunDate: date,
		LastRunAt:   now,
		Summary:     summary,
	}); err != nil {
		// The claim already recorded the date; losing the summary is not
		// worth failing the task over.
		g.logger.ErrorContext(ctx, "failed to record cron state summary",
			"task", g.name,
			"error", err.Error(),
		)
	}

	return res
}
