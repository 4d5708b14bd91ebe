package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/external"
	"leadloop/internal/types"
)

// reminderBatchSize caps appointments reminded per pass.
const reminderBatchSize = 100

// reminderLeadTime is how far ahead the runner looks for upcoming
// appointments that still need a reminder.
const reminderLeadTime = 24 * time.Hour

// AppointmentStore is the persistence contract for the reminder runner.
type AppointmentStore interface {
	ListNeedingReminder(ctx context.Context, from, to time.Time, limit int) ([]types.Appointment, error)
	MarkReminderSent(ctx context.Context, id string, now time.Time) error
}

// AppointmentReminderRunner sends reminders for appointments starting within
// the lead window, honoring each appointment's channel preference
// (sms, email, or both). The reminder_sent_at stamp makes re-runs skip
// already-reminded appointments.
type AppointmentReminderRunner struct {
	store  AppointmentStore
	email  external.EmailSender
	sms    external.SMSSender
	logger *slog.Logger
}

// NewAppointmentReminderRunner creates an AppointmentReminderRunner.
func NewAppointmentReminderRunner(store AppointmentStore, email external.EmailSender, sms external.SMSSender, logger *slog.Logger) *AppointmentReminderRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentReminderRunner{store: store, email: email, sms: sms, logger: logger}
}

// Run implements Runner.
func (r *AppointmentReminderRunner) Run(ctx context.Context, now time.Time) TaskResult {
	due, err := r.store.ListNeedingReminder(ctx, now, now.Add(reminderLeadTime), reminderBatchSize)
	if err != nil {
		return failure(fmt.Errorf("listing appointments needing reminders: %w", err))
	}

	reminded, sendFailed := 0, 0
	for _, appt := range due {
		if !r.deliver(ctx, appt) {
			// Left unstamped so the next pass retries until the appointment
			// starts.
			sendFailed++
			continue
		}
		if err := r.store.MarkReminderSent(ctx, appt.ID, now); err != nil {
			r.logger.ErrorContext(ctx, "failed to stamp appointment reminder",
				"appointment_id", appt.ID,
				"error", err.Error(),
			)
		}
		reminded++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"due": len(due), "reminded": reminded, "failed": sendFailed},
		Items:   reminded,
	}
}

// deliver sends the reminder over the appointment's preferred channel(s).
// For "both", one successful channel is enough to count as delivered.
func (r *AppointmentReminderRunner) deliver(ctx context.Context, appt types.Appointment) bool {
	wantSMS := appt.Channel == types.ReminderSMS || appt.Channel == types.ReminderBoth
	wantEmail := appt.Channel == types.ReminderEmail || appt.Channel == types.ReminderBoth

	delivered := false

	if wantSMS {
		if appt.ContactPhone == "" {
			r.logger.WarnContext(ctx, "appointment has no phone for sms reminder",
				"appointment_id", appt.ID,
			)
		} else if _, err := r.sms.SendSMS(ctx, appt.ContactPhone, r.smsBody(appt)); err != nil {
			r.logger.ErrorContext(ctx, "sms reminder failed",
				"appointment_id", appt.ID,
				"error", err.Error(),
			)
		} else {
			delivered = true
		}
	}

	if wantEmail {
		if appt.ContactEmail == "" {
			r.logger.WarnContext(ctx, "appointment has no email for reminder",
				"appointment_id", appt.ID,
			)
		} else if _, err := r.email.Send(ctx, external.EmailMessage{
			To:      appt.ContactEmail,
			ToName:  appt.ContactName,
			Subject: "Appointment reminder",
			Body:    r.emailBody(appt),
		}); err != nil {
			r.logger.ErrorContext(ctx, "email reminder failed",
				"appointment_id", appt.ID,
				"error", err.Error(),
			)
		} else {
			delivered = true
		}
	}

	return delivered
}

func (r *AppointmentReminderRunner) smsBody(appt types.Appointment) string {
	return fmt.Sprintf("Hi %s, this is a reminder of your appointment on %s.",
		appt.ContactName, appt.StartsAt.Format("Mon Jan 2 at 15:04"))
}

func (r *AppointmentReminderRunner) emailBody(appt types.Appointment) string {
	return fmt.Sprintf("<p>Hi %s,</p><p>This is a reminder of your upcoming appointment on <strong>%s</strong>.</p>",
		appt.ContactName, appt.StartsAt.Format("Monday, January 2 at 15:04"))
}
