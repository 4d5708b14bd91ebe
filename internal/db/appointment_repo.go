package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"leadloop/internal/types"
)

// AppointmentRepository provides read and reminder-stamp access to
// appointments. Appointments are user content; the sweep never deletes them.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListNeedingReminder returns appointments starting inside (from, to] that
// have not yet been sent a reminder, oldest start first.
func (r *AppointmentRepository) ListNeedingReminder(ctx context.Context, from, to time.Time, limit int) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, contact_name, COALESCE(contact_phone, ''),
		        COALESCE(contact_email, ''), starts_at, channel, reminder_sent_at
		 FROM appointments
		 WHERE starts_at > $1 AND starts_at <= $2
		   AND reminder_sent_at IS NULL
		 ORDER BY starts_at, id
		 LIMIT $3`,
		from,
		to,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query appointments needing reminders", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// ListInRange returns a company's appointments starting inside [from, to),
// used by the daily digest (whole day) and the hour-before nudge pass.
func (r *AppointmentRepository) ListInRange(ctx context.Context, companyID string, from, to time.Time) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, contact_name, COALESCE(contact_phone, ''),
		        COALESCE(contact_email, ''), starts_at, channel, reminder_sent_at
		 FROM appointments
		 WHERE company_id = $1 AND starts_at >= $2 AND starts_at < $3
		 ORDER BY starts_at, id`,
		companyID,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query appointments in range", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// MarkReminderSent stamps reminder_sent_at so re-runs skip the appointment.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE appointments
		 SET reminder_sent_at = $2
		 WHERE id = $1 AND reminder_sent_at IS NULL`,
		id,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark reminder as sent", err)
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]types.Appointment, error) {
	var appts []types.Appointment
	for rows.Next() {
		var a types.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.CompanyID,
			&a.ContactName,
			&a.ContactPhone,
			&a.ContactEmail,
			&a.StartsAt,
			&a.Channel,
			&a.ReminderSentAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating appointments", err)
	}
	return appts, nil
}
