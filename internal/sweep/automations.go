package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/external"
	"leadloop/internal/types"
)

// automationBatchSize caps due automation emails picked up per pass.
const automationBatchSize = 100

// campaignBatchSize caps campaign jobs claimed per pass. Jobs fan out to
// whole recipient lists, so the cap is deliberately small.
const campaignBatchSize = 10

// AutomationEmailStore is the persistence contract for the email automation
// runner.
type AutomationEmailStore interface {
	ListDueEmails(ctx context.Context, now time.Time, limit int) ([]types.EmailAutomation, error)
	MarkEmailSent(ctx context.Context, id string, now time.Time) error
	MarkEmailFailed(ctx context.Context, id string, note string) error
}

// EmailAutomationRunner sends scheduled automation emails (drip steps,
// follow-ups) whose send time has passed.
type EmailAutomationRunner struct {
	store  AutomationEmailStore
	email  external.EmailSender
	logger *slog.Logger
}

// NewEmailAutomationRunner creates an EmailAutomationRunner.
func NewEmailAutomationRunner(store AutomationEmailStore, email external.EmailSender, logger *slog.Logger) *EmailAutomationRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailAutomationRunner{store: store, email: email, logger: logger}
}

// Run implements Runner. Per-email send failures mark only that row failed;
// the batch continues.
func (r *EmailAutomationRunner) Run(ctx context.Context, now time.Time) TaskResult {
	due, err := r.store.ListDueEmails(ctx, now, automationBatchSize)
	if err != nil {
		return failure(fmt.Errorf("listing due automation emails: %w", err))
	}

	sent, sendFailed := 0, 0
	for _, e := range due {
		_, err := r.email.Send(ctx, external.EmailMessage{
			To:      e.RecipientEmail,
			Subject: e.Subject,
			Body:    e.Body,
		})
		if err != nil {
			sendFailed++
			r.logger.ErrorContext(ctx, "automation email send failed",
				"automation_id", e.ID,
				"company_id", e.CompanyID,
				"error", err.Error(),
			)
			if markErr := r.store.MarkEmailFailed(ctx, e.ID, err.Error()); markErr != nil {
				r.logger.ErrorContext(ctx, "failed to mark automation email failed",
					"automation_id", e.ID,
					"error", markErr.Error(),
				)
			}
			continue
		}
		if err := r.store.MarkEmailSent(ctx, e.ID, now); err != nil {
			// The email went out; an unstamped row means one duplicate on the
			// next pass, which is the accepted failure mode.
			r.logger.ErrorContext(ctx, "failed to mark automation email sent",
				"automation_id", e.ID,
				"error", err.Error(),
			)
		}
		sent++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"due": len(due), "sent": sent, "failed": sendFailed},
		Items:   sent,
	}
}

// CampaignJobStore is the persistence contract for the campaign runner.
type CampaignJobStore interface {
	ClaimDueCampaignJobs(ctx context.Context, now time.Time, limit int) ([]types.CampaignJob, error)
	FinishCampaignJob(ctx context.Context, id string, status types.CampaignJobStatus, sent, failed int, now time.Time) error
}

// CampaignRunner executes due campaign send jobs: each job fans one message
// out to its whole recipient list. The claim moves jobs to running so an
// overlapping sweep cannot double-send a campaign.
type CampaignRunner struct {
	store  CampaignJobStore
	email  external.EmailSender
	logger *slog.Logger
}

// NewCampaignRunner creates a CampaignRunner.
func NewCampaignRunner(store CampaignJobStore, email external.EmailSender, logger *slog.Logger) *CampaignRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignRunner{store: store, email: email, logger: logger}
}

// Run implements Runner.
func (r *CampaignRunner) Run(ctx context.Context, now time.Time) TaskResult {
	jobs, err := r.store.ClaimDueCampaignJobs(ctx, now, campaignBatchSize)
	if err != nil {
		return failure(fmt.Errorf("claiming campaign jobs: %w", err))
	}

	totalSent, totalFailed := 0, 0
	for _, job := range jobs {
		sent, sendFailed := r.runJob(ctx, job)
		totalSent += sent
		totalFailed += sendFailed

		status := types.CampaignJobCompleted
		if len(job.Recipients) > 0 && sent == 0 {
			status = types.CampaignJobFailed
		}
		if err := r.store.FinishCampaignJob(ctx, job.ID, status, sent, sendFailed, now); err != nil {
			r.logger.ErrorContext(ctx, "failed to finish campaign job",
				"job_id", job.ID,
				"error", err.Error(),
			)
		}
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{
			"jobs":   len(jobs),
			"sent":   totalSent,
			"failed": totalFailed,
		},
		Items: len(jobs),
	}
}

func (r *CampaignRunner) runJob(ctx context.Context, job types.CampaignJob) (sent, sendFailed int) {
	for _, recipient := range job.Recipients {
		_, err := r.email.Send(ctx, external.EmailMessage{
			To:      recipient,
			Subject: job.Subject,
			Body:    job.Body,
		})
		if err != nil {
			sendFailed++
			r.logger.ErrorContext(ctx, "campaign send failed",
				"job_id", job.ID,
				"recipient", recipient,
				"error", err.Error(),
			)
			continue
		}
		sent++
	}
	return sent, sendFailed
}
