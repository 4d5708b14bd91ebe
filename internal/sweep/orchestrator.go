package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/telemetry"
)

// Hour-of-day windows for the daily-gated tasks, in the sweep timezone.
// These approximate "once a day, around this time" for a trigger that may
// fire every few minutes.
var (
	InvoiceWindow         = Window{StartHour: 5, EndHour: 7}
	PaymentReminderWindow = Window{StartHour: 9, EndHour: 11}
	CleanupWindow         = Window{StartHour: 2, EndHour: 4}
)

// Runners holds the nine task runners in their fixed execution order. The
// windowed entries (RecurringInvoices, PaymentReminders, DataCleanup) are
// expected to arrive already wrapped in their DailyGate.
type Runners struct {
	Automations          Runner
	Campaigns            Runner
	Workflows            Runner
	SocialPosts          Runner
	AppointmentReminders Runner
	Digest               Runner
	RecurringInvoices    Runner
	PaymentReminders     Runner
	DataCleanup          Runner
}

// Orchestrator executes every task runner in sequence, each inside its own
// failure boundary, and aggregates the per-task results into a Report. One
// task's error or panic never prevents the remaining tasks from running, and
// no retries happen within a single invocation; retry is the next trigger.
type Orchestrator struct {
	runners Runners
	metrics telemetry.SweepMetrics
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(runners Runners, metrics telemetry.SweepMetrics, logger *slog.Logger) *Orchestrator {
	if metrics == nil {
		metrics = telemetry.NopSweepMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runners: runners,
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes one full sweep at the given reference instant and returns the
// aggregate report. Overall success is true iff at least one task succeeded.
func (o *Orchestrator) Run(ctx context.Context, now time.Time) *Report {
	started := time.Now()

	o.logger.InfoContext(ctx, "sweep started",
		"reference_time", now.Format(time.RFC3339),
	)

	report := &Report{Timestamp: now}
	report.Automations = o.runTask(ctx, TaskEmailAutomations, o.runners.Automations, now)
	report.Campaigns = o.runTask(ctx, TaskCampaignJobs, o.runners.Campaigns, now)
	report.Workflows = o.runTask(ctx, TaskWorkflowSweep, o.runners.Workflows, now)
	report.SocialPosts = o.runTask(ctx, TaskSocialPosts, o.runners.SocialPosts, now)
	report.AppointmentReminders = o.runTask(ctx, TaskAppointmentReminders, o.runners.AppointmentReminders, now)
	report.TaskReminders = o.runTask(ctx, TaskDailyDigest, o.runners.Digest, now)
	report.RecurringInvoices = o.runTask(ctx, TaskRecurringInvoices, o.runners.RecurringInvoices, now)
	report.PaymentReminders = o.runTask(ctx, TaskPaymentReminders, o.runners.PaymentReminders, now)
	report.DataCleanup = o.runTask(ctx, TaskDataCleanup, o.runners.DataCleanup, now)

	for _, res := range []TaskResult{
		report.Automations,
		report.Campaigns,
		report.Workflows,
		report.SocialPosts,
		report.AppointmentReminders,
		report.TaskReminders,
		report.RecurringInvoices,
		report.PaymentReminders,
		report.DataCleanup,
	} {
		if res.Success {
			report.Success = true
			break
		}
	}

	elapsed := time.Since(started)
	report.Duration = elapsed.String()
	o.metrics.RecordSweep(ctx, report.Success, elapsed)

	o.logger.InfoContext(ctx, "sweep finished",
		"success", report.Success,
		"duration", report.Duration,
	)

	return report
}

// runTask executes one runner inside its failure boundary: both returned
// errors and panics are converted into a failed TaskResult.
func (o *Orchestrator) runTask(ctx context.Context, name string, r Runner, now time.Time) (res TaskResult) {
	if r == nil {
		return skipped("runner not configured")
	}

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = failure(fmt.Errorf("task panicked: %v", rec))
			o.logger.ErrorContext(ctx, "task panicked",
				"task", name,
				"panic", fmt.Sprint(rec),
			)
		}
		if !res.Skipped {
			o.metrics.RecordTask(ctx, name, res.Success, res.Items, time.Since(started))
		}
		o.logger.InfoContext(ctx, "task finished",
			"task", name,
			"success", res.Success,
			"skipped", res.Skipped,
			"items", res.Items,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}()

	res = r.Run(ctx, now)
	if !res.Success && !res.Skipped {
		o.logger.ErrorContext(ctx, "task failed",
			"task", name,
			"error", res.Error,
		)
	}
	return res
}
