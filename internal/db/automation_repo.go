package db

import (
	"context"
	"time"

	"leadloop/internal/types"
)

// AutomationRepository provides data access for scheduled automation emails
// and campaign send jobs.
type AutomationRepository struct {
	db DBTX
}

// NewAutomationRepository creates a new AutomationRepository backed by the
// given database connection (pool or transaction).
func NewAutomationRepository(db DBTX) *AutomationRepository {
	return &AutomationRepository{db: db}
}

// ListDueEmails returns pending automation emails whose send time has
// passed, oldest first.
func (r *AutomationRepository) ListDueEmails(ctx context.Context, now time.Time, limit int) ([]types.EmailAutomation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, recipient_email, subject, body, send_at,
		        status, sent_at, COALESCE(failure_note, '')
		 FROM email_automations
		 WHERE status = 'pending' AND send_at <= $1
		 ORDER BY send_at, id
		 LIMIT $2`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due automation emails", err)
	}
	defer rows.Close()

	var emails []types.EmailAutomation
	for rows.Next() {
		var e types.EmailAutomation
		if err := rows.Scan(
			&e.ID,
			&e.CompanyID,
			&e.RecipientEmail,
			&e.Subject,
			&e.Body,
			&e.SendAt,
			&e.Status,
			&e.SentAt,
			&e.FailureNote,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan automation email", err)
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating automation emails", err)
	}

	return emails, nil
}

// MarkEmailSent transitions an automation email to sent.
func (r *AutomationRepository) MarkEmailSent(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE email_automations
		 SET status = 'sent', sent_at = $2, failure_note = NULL
		 WHERE id = $1`,
		id,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark automation email as sent", err)
	}
	return nil
}

// MarkEmailFailed transitions an automation email to failed with a note.
func (r *AutomationRepository) MarkEmailFailed(ctx context.Context, id string, note string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE email_automations
		 SET status = 'failed', failure_note = $2
		 WHERE id = $1`,
		id,
		note,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark automation email as failed", err)
	}
	return nil
}

// ClaimDueCampaignJobs atomically moves due scheduled campaign jobs to
// running and returns them. The status transition doubles as the claim so
// overlapping sweeps do not double-send a campaign.
func (r *AutomationRepository) ClaimDueCampaignJobs(ctx context.Context, now time.Time, limit int) ([]types.CampaignJob, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE campaign_jobs
		 SET status = 'running', started_at = $1
		 WHERE id IN (
		   SELECT id FROM campaign_jobs
		   WHERE status = 'scheduled' AND scheduled_at <= $1
		   ORDER BY scheduled_at, id
		   LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, company_id, campaign_id, name, subject, body,
		           recipients, status, scheduled_at, started_at, finished_at,
		           sent_count, failed_count`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to claim campaign jobs", err)
	}
	defer rows.Close()

	var jobs []types.CampaignJob
	for rows.Next() {
		var j types.CampaignJob
		if err := rows.Scan(
			&j.ID,
			&j.CompanyID,
			&j.CampaignID,
			&j.Name,
			&j.Subject,
			&j.Body,
			&j.Recipients,
			&j.Status,
			&j.ScheduledAt,
			&j.StartedAt,
			&j.FinishedAt,
			&j.SentCount,
			&j.FailedCount,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan campaign job", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating campaign jobs", err)
	}

	return jobs, nil
}

// FinishCampaignJob records the final status and send counts for a job.
func (r *AutomationRepository) FinishCampaignJob(ctx context.Context, id string, status types.CampaignJobStatus, sent, failed int, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE campaign_jobs
		 SET status = $2, sent_count = $3, failed_count = $4, finished_at = $5
		 WHERE id = $1`,
		id,
		status,
		sent,
		failed,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish campaign job", err)
	}
	return nil
}
