// Package sweep implements the scheduled batch sweep: an externally-triggered
// orchestrator that runs nine task runners in a fixed order across all
// tenants. There is no in-process scheduler or retry; a failed task simply
// waits for the next external trigger.
package sweep

import "time"

// Task names, used as cron_state keys, metric dimensions, and log fields.
const (
	TaskEmailAutomations     = "email_automations"
	TaskCampaignJobs         = "campaign_jobs"
	TaskWorkflowSweep        = "workflow_sweep"
	TaskSocialPosts          = "social_posts"
	TaskAppointmentReminders = "appointment_reminders"
	TaskDailyDigest          = "daily_digest"
	TaskRecurringInvoices    = "recurring_invoices"
	TaskPaymentReminders     = "payment_reminders"
	TaskDataCleanup          = "data_cleanup"
)

// TaskResult is the outcome of one task runner within a sweep.
//
// Skipped results come from the hour-of-day window and the daily-once guard;
// they are neither successes nor failures and do not count toward the
// sweep-level success flag.
type TaskResult struct {
	Success bool           `json:"success"`
	Skipped bool           `json:"skipped,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`

	// Items is the processed item count reported to metrics. It is carried
	// inside Details for the JSON report.
	Items int `json:"-"`
}

// failure builds a failed TaskResult from an error.
func failure(err error) TaskResult {
	return TaskResult{Success: false, Error: err.Error()}
}

// skipped builds a skipped TaskResult with a human-readable reason.
func skipped(reason string) TaskResult {
	return TaskResult{Skipped: true, Reason: reason}
}

// Report is the aggregate sweep outcome returned to the trigger caller.
// Success is true iff at least one task succeeded.
type Report struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration"`

	Automations          TaskResult `json:"automations"`
	Campaigns            TaskResult `json:"campaigns"`
	Workflows            TaskResult `json:"workflows"`
	SocialPosts          TaskResult `json:"socialPosts"`
	AppointmentReminders TaskResult `json:"appointmentReminders"`
	TaskReminders        TaskResult `json:"taskReminders"`
	RecurringInvoices    TaskResult `json:"recurringInvoices"`
	PaymentReminders     TaskResult `json:"paymentReminders"`
	DataCleanup          TaskResult `json:"dataCleanup"`
}

// Tasks returns the per-task results in execution order, for callers that
// summarize a pass without caring which task is which.
func (r *Report) Tasks() []TaskResult {
	return []TaskResult{
		r.Automations,
		r.Campaigns,
		r.Workflows,
		r.SocialPosts,
		r.AppointmentReminders,
		r.TaskReminders,
		r.RecurringInvoices,
		r.PaymentReminders,
		r.DataCleanup,
	}
}
