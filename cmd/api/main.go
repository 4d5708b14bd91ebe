// Package main is the entry point for the LeadLoop sweep API server.
//
// It loads configuration, connects the database pool and AWS clients, wires
// the nine sweep task runners into the orchestrator, and exposes the
// HTTP trigger endpoint behind the core chassis (middleware, routing,
// health checks).
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadloop/internal/api/handlers"
	"leadloop/internal/archive"
	"leadloop/internal/config"
	"leadloop/internal/core"
	"leadloop/internal/db"
	"leadloop/internal/external"
	"leadloop/internal/queue"
	"leadloop/internal/sweep"
	"leadloop/internal/telemetry"
	"leadloop/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("leadloop sweep service starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}
	endpoint := cfg.AWS.EndpointURL

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

	orchestrator := buildOrchestrator(cfg, pool, sqsClient, cwClient, awsCfg, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{dbProbe{pool: pool}}

	cronHandler := handlers.NewCronHandler(orchestrator, cfg.Sweep.Location(), logger)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		cronHandler.RegisterRoutes(r)
	})
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// buildOrchestrator wires the nine task runners with their repositories,
// vendor clients, queues, and daily guards.
func buildOrchestrator(
	cfg *config.Config,
	pool *pgxpool.Pool,
	sqsClient *sqs.Client,
	cwClient *cloudwatch.Client,
	awsCfg aws.Config,
	logger *slog.Logger,
) *sweep.Orchestrator {
	loc := cfg.Sweep.Location()

	// Repositories
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

	// Vendor clients share one underlying HTTP client; each gets its own
	// circuit breaker inside BaseClient.
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

	// Queues
	digestQueue := queue.NewPublisher(sqsClient, cfg.AWS.DigestQueue, logger)
	socialQueue := queue.NewPublisher(sqsClient, cfg.AWS.SocialQueue, logger)

	// Run log archival is optional; without a bucket the cleaner deletes
	// expired run logs without archiving.
	var archiver sweep.RunLogArchiver
	if cfg.AWS.ArchiveBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
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

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// dbProbe reports database health for GET /health.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A sweep pass runs synchronously inside the request; give it room.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
