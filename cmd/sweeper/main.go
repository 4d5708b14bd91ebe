// Package main is the entrypoint for the Sweeper Lambda function.
//
// It is the scheduled alternative to the HTTP trigger endpoint: an
// EventBridge rule invokes it on a fixed cadence and each invocation runs
// one full sweep pass across all tenants. The payload may carry an optional
// reference time for operational replays; otherwise the wall clock is used.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadloop/internal/archive"
	"leadloop/internal/config"
	"leadloop/internal/db"
	"leadloop/internal/external"
	"leadloop/internal/queue"
	"leadloop/internal/sweep"
	"leadloop/internal/telemetry"
	"leadloop/internal/workflow"
)

// SweepPayload is the EventBridge invocation payload. ReferenceTime lets an
// operator replay a pass as if it ran at a specific instant.
type SweepPayload struct {
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// SweepRunner is the orchestrator contract the handler depends on.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) *sweep.Report
}

// Handler holds the dependencies for the sweeper Lambda handler function.
type Handler struct {
	Runner   SweepRunner
	Location *time.Location
	WorkerID string
	Logger   *slog.Logger
}

// Handle runs one sweep pass and returns a human-readable summary. A pass
// where no task succeeded is surfaced as a handler error so the schedule's
// failure alarms fire.
func (h *Handler) Handle(ctx context.Context, payload SweepPayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().In(h.Location)
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.In(h.Location)
	}

	logger.InfoContext(ctx, "sweeper handler invoked",
		"reference_time", now.Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	report := h.Runner.Run(ctx, now)

	succeeded, skipped := 0, 0
	for _, res := range report.Tasks() {
		switch {
		case res.Success:
			succeeded++
		case res.Skipped:
			skipped++
		}
	}

	summary := fmt.Sprintf("sweep complete in %s: %d succeeded, %d skipped", report.Duration, succeeded, skipped)
	if !report.Success {
		return "", fmt.Errorf("sweep pass had no successful task (%d skipped)", skipped)
	}
	return summary, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("sweeper Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		Runner:   buildOrchestrator(cfg, pool, awsCfg, logger),
		Location: cfg.Sweep.Location(),
		WorkerID: uuid.New().String(),
		Logger:   logger,
	}

	logger.Info("sweeper Lambda initialized", "worker_id", handler.WorkerID)

	lambda.Start(handler.Handle)
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	pc.MaxConns = int32(cfg.MaxConns)
	pc.MinConns = int32(cfg.MinConns)
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	return pgxpool.NewWithConfig(ctx, pc)
}

// buildOrchestrator wires the nine task runners. Mirrors the HTTP entry
// point's wiring; the two binaries share everything below cmd/.
func buildOrchestrator(cfg *config.Config, pool *pgxpool.Pool, awsCfg aws.Config, logger *slog.Logger) *sweep.Orchestrator {
	loc := cfg.Sweep.Location()
	endpoint := cfg.AWS.EndpointURL

	companies := db.NewCompanyRepository(pool)
	automations := db.NewAutomationRepository(pool)
	workflows := db.NewWorkflowRepository(pool)
	socialPosts := db.NewSocialPostRepository(pool)
	appointments := db.NewAppointmentRepository(pool)
	tasks := db.NewTaskRepository(pool)
	billing := db.NewBillingRepository(pool)
	retention := db.NewRetentionRepository(pool)
	contacts := db.NewContactRepository(pool)
	cronStates := db.NewCronStateRepository(pool)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	sendgrid := external.NewSendGridClient(httpClient, external.SendGridClientConfig{
		APIKey:      cfg.Email.SendGridAPIKey.Unmask(),
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Logger:      logger,
	})
	twilio := external.NewTwilioClient(httpClient, external.TwilioClientConfig{
		AccountSID: cfg.SMS.TwilioAccountSID,
		AuthToken:  cfg.SMS.TwilioAuthToken.Unmask(),
		FromNumber: cfg.SMS.FromNumber,
		Logger:     logger,
	})
	stripe := external.NewStripeClient(httpClient, external.StripeClientConfig{
		SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
		Logger:    logger,
	})
	webhooks := external.NewWebhookClient(httpClient, logger)

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	digestQueue := queue.NewPublisher(sqsClient, cfg.AWS.DigestQueue, logger)
	socialQueue := queue.NewPublisher(sqsClient, cfg.AWS.SocialQueue, logger)

	var archiver sweep.RunLogArchiver
	if cfg.AWS.ArchiveBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		archiver = archive.NewRunLogArchiver(archive.NewS3Store(s3Client, cfg.AWS.ArchiveBucket), logger)
	}

	executor := workflow.NewExecutor(sendgrid, twilio, webhooks, contacts, logger)

	runners := sweep.Runners{
		Automations:          sweep.NewEmailAutomationRunner(automations, sendgrid, logger),
		Campaigns:            sweep.NewCampaignRunner(automations, sendgrid, logger),
		Workflows:            sweep.NewWorkflowSweeper(companies, workflows, executor, logger),
		SocialPosts:          sweep.NewSocialPostRunner(socialPosts, socialQueue, logger),
		AppointmentReminders: sweep.NewAppointmentReminderRunner(appointments, sendgrid, twilio, logger),
		Digest:               sweep.NewDigestRunner(companies, appointments, tasks, digestQueue, cronStates, loc, logger),
		RecurringInvoices: sweep.NewDailyGate(
			sweep.TaskRecurringInvoices, sweep.InvoiceWindow, cronStates, loc,
			sweep.NewInvoiceGenerator(billing, companies, stripe, logger), logger),
		PaymentReminders: sweep.NewDailyGate(
			sweep.TaskPaymentReminders, sweep.PaymentReminderWindow, cronStates, loc,
			sweep.NewPaymentReminderRunner(billing, sendgrid, logger), logger),
		DataCleanup: sweep.NewDailyGate(
			sweep.TaskDataCleanup, sweep.CleanupWindow, cronStates, loc,
			sweep.NewRetentionCleaner(companies, retention, workflows, archiver, cfg.Sweep.MaxCleanupCompanies, logger), logger),
	}

	metrics := telemetry.NewCloudWatchSweepMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
	return sweep.NewOrchestrator(runners, metrics, logger)
}
