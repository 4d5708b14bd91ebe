package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadloop/internal/queue"
	"leadloop/internal/types"
)

// Digest sub-task names for the daily-once guard rows.
const (
	taskDigestMorning  = "daily_digest_morning"
	taskDigestEndOfDay = "daily_digest_end_of_day"
)

// Digest variant windows in the sweep timezone. The hour-before nudge pass
// has no window; it is inherently scoped by appointment start times.
var (
	digestMorningWindow  = Window{StartHour: 6, EndHour: 8}
	digestEndOfDayWindow = Window{StartHour: 17, EndHour: 19}
)

// nudgeLookahead is how far ahead the hour-before pass scans for
// appointments about to start.
const nudgeLookahead = time.Hour

// AppointmentReader lists appointments for digest assembly.
type AppointmentReader interface {
	ListInRange(ctx context.Context, companyID string, from, to time.Time) ([]types.Appointment, error)
}

// TaskReader lists CRM tasks for digest assembly.
type TaskReader interface {
	ListDueForDay(ctx context.Context, companyID string, dayStart, dayEnd time.Time) ([]types.Task, error)
	CountDayOutcomes(ctx context.Context, companyID string, dayStart, dayEnd time.Time) (completed int, open int, err error)
}

// DigestPublisher enqueues assembled digests for the delivery workers.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, msg queue.DigestMessage, delay time.Duration) error
}

// DigestRunner assembles the three daily-digest variants and publishes them
// as queue messages; delivery happens downstream. Morning and end-of-day run
// once per day behind their own guards; the hour-before nudge runs on every
// pass because its content window moves with the clock.
type DigestRunner struct {
	companies    CompanyLister
	appointments AppointmentReader
	tasks        TaskReader
	publisher    DigestPublisher
	loc          *time.Location
	logger       *slog.Logger

	morningGate  Runner
	endOfDayGate Runner
}

// NewDigestRunner creates a DigestRunner.
func NewDigestRunner(
	companies CompanyLister,
	appointments AppointmentReader,
	tasks TaskReader,
	publisher DigestPublisher,
	states CronStateStore,
	loc *time.Location,
	logger *slog.Logger,
) *DigestRunner {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &DigestRunner{
		companies:    companies,
		appointments: appointments,
		tasks:        tasks,
		publisher:    publisher,
		loc:          loc,
		logger:       logger,
	}
	r.morningGate = NewDailyGate(taskDigestMorning, digestMorningWindow, states, loc, RunnerFunc(r.runMorning), logger)
	r.endOfDayGate = NewDailyGate(taskDigestEndOfDay, digestEndOfDayWindow, states, loc, RunnerFunc(r.runEndOfDay), logger)
	return r
}

// Run implements Runner, merging the three variant passes into one result.
func (r *DigestRunner) Run(ctx context.Context, now time.Time) TaskResult {
	morning := r.morningGate.Run(ctx, now)
	hourBefore := r.runHourBefore(ctx, now)
	endOfDay := r.endOfDayGate.Run(ctx, now)

	merged := TaskResult{
		Success: morning.Success || hourBefore.Success || endOfDay.Success,
		Details: map[string]any{
			"morning":    variantDetail(morning),
			"hourBefore": variantDetail(hourBefore),
			"endOfDay":   variantDetail(endOfDay),
		},
		Items: morning.Items + hourBefore.Items + endOfDay.Items,
	}

	if merged.Success {
		return merged
	}
	if morning.Skipped && hourBefore.Skipped && endOfDay.Skipped {
		merged.Skipped = true
		merged.Reason = "all digest variants skipped"
		return merged
	}

	var errs []string
	for _, res := range []TaskResult{morning, hourBefore, endOfDay} {
		if res.Error != "" {
			errs = append(errs, res.Error)
		}
	}
	merged.Error = strings.Join(errs, "; ")
	return merged
}

func variantDetail(res TaskResult) map[string]any {
	d := map[string]any{}
	switch {
	case res.Skipped:
		d["skipped"] = true
		d["reason"] = res.Reason
	case res.Error != "":
		d["error"] = res.Error
	default:
		for k, v := range res.Details {
			d[k] = v
		}
	}
	return d
}

// dayBounds returns the local calendar day containing now as UTC-comparable
// instants.
func (r *DigestRunner) dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1)
}

// runMorning publishes each company's same-day appointments and open tasks.
func (r *DigestRunner) runMorning(ctx context.Context, now time.Time) TaskResult {
	companies, err := r.companies.ListActive(ctx)
	if err != nil {
		return failure(fmt.Errorf("listing companies: %w", err))
	}

	dayStart, dayEnd := r.dayBounds(now)
	date := now.In(r.loc).Format("2006-01-02")
	published := 0

	for _, company := range companies {
		appts, err := r.appointments.ListInRange(ctx, company.ID, dayStart, dayEnd)
		if err != nil {
			r.logger.ErrorContext(ctx, "morning digest appointment query failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		tasks, err := r.tasks.ListDueForDay(ctx, company.ID, dayStart, dayEnd)
		if err != nil {
			r.logger.ErrorContext(ctx, "morning digest task query failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		if len(appts) == 0 && len(tasks) == 0 {
			continue
		}

		msg := queue.DigestMessage{
			CompanyID:    company.ID,
			Variant:      types.DigestMorning,
			Date:         date,
			Appointments: appts,
			Tasks:        tasks,
		}
		if err := r.publisher.PublishDigest(ctx, msg, 0); err != nil {
			r.logger.ErrorContext(ctx, "morning digest publish failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		published++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"companies": len(companies), "published": published},
		Items:   published,
	}
}

// runHourBefore publishes nudges for appointments starting within the next
// hour. Duplicate nudges across adjacent passes are possible and accepted;
// the delivery workers deduplicate by appointment.
func (r *DigestRunner) runHourBefore(ctx context.Context, now time.Time) TaskResult {
	companies, err := r.companies.ListActive(ctx)
	if err != nil {
		return failure(fmt.Errorf("listing companies: %w", err))
	}

	date := now.In(r.loc).Format("2006-01-02")
	published := 0

	for _, company := range companies {
		appts, err := r.appointments.ListInRange(ctx, company.ID, now, now.Add(nudgeLookahead))
		if err != nil {
			r.logger.ErrorContext(ctx, "hour-before digest query failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		if len(appts) == 0 {
			continue
		}

		msg := queue.DigestMessage{
			CompanyID:    company.ID,
			Variant:      types.DigestHourBefore,
			Date:         date,
			Appointments: appts,
		}
		if err := r.publisher.PublishDigest(ctx, msg, 0); err != nil {
			r.logger.ErrorContext(ctx, "hour-before digest publish failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		published++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"companies": len(companies), "published": published},
		Items:   published,
	}
}

// runEndOfDay publishes each company's completed/open task recap.
func (r *DigestRunner) runEndOfDay(ctx context.Context, now time.Time) TaskResult {
	companies, err := r.companies.ListActive(ctx)
	if err != nil {
		return failure(fmt.Errorf("listing companies: %w", err))
	}

	dayStart, dayEnd := r.dayBounds(now)
	date := now.In(r.loc).Format("2006-01-02")
	published := 0

	for _, company := range companies {
		done, open, err := r.tasks.CountDayOutcomes(ctx, company.ID, dayStart, dayEnd)
		if err != nil {
			r.logger.ErrorContext(ctx, "end-of-day digest count failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		if done == 0 && open == 0 {
			continue
		}

		msg := queue.DigestMessage{
			CompanyID: company.ID,
			Variant:   types.DigestEndOfDay,
			Date:      date,
			DoneCount: done,
			OpenCount: open,
		}
		if err := r.publisher.PublishDigest(ctx, msg, 0); err != nil {
			r.logger.ErrorContext(ctx, "end-of-day digest publish failed",
				"company_id", company.ID, "error", err.Error())
			continue
		}
		published++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"companies": len(companies), "published": published},
		Items:   published,
	}
}
