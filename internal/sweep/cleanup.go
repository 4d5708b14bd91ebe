package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/types"
)

// Retention windows and batch bounds for the data-retention cleaner. Only
// system bookkeeping data is subject to retention; user content (leads,
// appointments, transactions, pages, content hub) is never auto-deleted.
const (
	notificationRetention = 7 * 24 * time.Hour
	postRetention         = 30 * 24 * time.Hour
	runLogRetention       = 14 * 24 * time.Hour

	// keepChatSessions is the most-recently-updated session count preserved
	// per owning user.
	keepChatSessions = 20

	// retentionBatchSize bounds every delete query issued by the cleaner.
	// Each collection gets exactly one batch per company per run, so a
	// heavy backlog drains across later runs instead of stretching this one.
	retentionBatchSize = 100
)

// RetentionStore is the persistence contract for notification, post, and
// chat-session cleanup.
type RetentionStore interface {
	DeleteNotificationsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) (int64, error)
	DeleteTerminalPostsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) (int64, error)
	ListStaleChatSessions(ctx context.Context, companyID string, keep, limit int) ([]string, error)
	DeleteChatSession(ctx context.Context, sessionID string) error
}

// RunLogStore is the run-log subset of the workflow store the cleaner needs.
type RunLogStore interface {
	ListRunLogsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) ([]types.WorkflowRunLog, error)
	DeleteRunLogs(ctx context.Context, companyID string, ids []string) (int64, error)
}

// RunLogArchiver uploads a batch of run logs to cold storage before the
// cleaner deletes them. May be nil when archival is not configured.
type RunLogArchiver interface {
	ArchiveRunLogs(ctx context.Context, companyID string, logs []types.WorkflowRunLog) (string, error)
}

// RetentionCleaner enforces retention limits across tenants. It uses no
// multi-table transactions; a crash mid-run leaves partial cleanup, which is
// acceptable because every step is idempotent and a later run deletes what
// remains. Runs behind the late-night window and daily guard.
type RetentionCleaner struct {
	companies    CompanyLister
	store        RetentionStore
	runLogs      RunLogStore
	archiver     RunLogArchiver
	maxCompanies int
	logger       *slog.Logger
}

// NewRetentionCleaner creates a RetentionCleaner. archiver may be nil.
func NewRetentionCleaner(
	companies CompanyLister,
	store RetentionStore,
	runLogs RunLogStore,
	archiver RunLogArchiver,
	maxCompanies int,
	logger *slog.Logger,
) *RetentionCleaner {
	if maxCompanies <= 0 {
		maxCompanies = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionCleaner{
		companies:    companies,
		store:        store,
		runLogs:      runLogs,
		archiver:     archiver,
		maxCompanies: maxCompanies,
		logger:       logger,
	}
}

// Run implements Runner.
func (c *RetentionCleaner) Run(ctx context.Context, now time.Time) TaskResult {
	companies, err := c.companies.ListActive(ctx)
	if err != nil {
		return failure(fmt.Errorf("listing companies: %w", err))
	}
	if len(companies) > c.maxCompanies {
		companies = companies[:c.maxCompanies]
	}

	var (
		notifications int64
		posts         int64
		sessions      int
		runLogs       int64
		companyErrors []string
	)

	for _, company := range companies {
		n, err := c.store.DeleteNotificationsBefore(ctx, company.ID, now.Add(-notificationRetention), retentionBatchSize)
		notifications += n
		if err != nil {
			companyErrors = append(companyErrors, fmt.Sprintf("%s notifications: %v", company.ID, err))
		}

		p, err := c.store.DeleteTerminalPostsBefore(ctx, company.ID, now.Add(-postRetention), retentionBatchSize)
		posts += p
		if err != nil {
			companyErrors = append(companyErrors, fmt.Sprintf("%s posts: %v", company.ID, err))
		}

		s, err := c.cleanChatSessions(ctx, company.ID)
		sessions += s
		if err != nil {
			companyErrors = append(companyErrors, fmt.Sprintf("%s chat sessions: %v", company.ID, err))
		}

		l, err := c.cleanRunLogs(ctx, company.ID, now)
		runLogs += l
		if err != nil {
			companyErrors = append(companyErrors, fmt.Sprintf("%s run logs: %v", company.ID, err))
		}
	}

	details := map[string]any{
		"companies":     len(companies),
		"notifications": notifications,
		"posts":         posts,
		"chatSessions":  sessions,
		"runLogs":       runLogs,
	}
	if len(companyErrors) > 0 {
		details["errors"] = companyErrors
	}

	total := notifications + posts + int64(sessions) + runLogs
	return TaskResult{Success: true, Details: details, Items: int(total)}
}

// cleanChatSessions deletes sessions beyond each user's keep window,
// cascading to their messages.
func (c *RetentionCleaner) cleanChatSessions(ctx context.Context, companyID string) (int, error) {
	ids, err := c.store.ListStaleChatSessions(ctx, companyID, keepChatSessions, retentionBatchSize)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := c.store.DeleteChatSession(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// cleanRunLogs archives then deletes one bounded batch of run logs past
// retention. When no archiver is configured the logs are deleted unarchived.
func (c *RetentionCleaner) cleanRunLogs(ctx context.Context, companyID string, now time.Time) (int64, error) {
	cutoff := now.Add(-runLogRetention)

	logs, err := c.runLogs.ListRunLogsBefore(ctx, companyID, cutoff, retentionBatchSize)
	if err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		return 0, nil
	}

	if c.archiver != nil {
		key, err := c.archiver.ArchiveRunLogs(ctx, companyID, logs)
		if err != nil {
			// Never delete what we failed to archive.
			return 0, fmt.Errorf("archiving run logs: %w", err)
		}
		c.logger.InfoContext(ctx, "archived run log batch",
			"company_id", companyID,
			"batch_size", len(logs),
			"key", key,
		)
	}

	ids := make([]string, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
	}
	return c.runLogs.DeleteRunLogs(ctx, companyID, ids)
}
