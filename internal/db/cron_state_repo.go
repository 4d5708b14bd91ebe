package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"leadloop/internal/types"
)

// CronStateRepository provides the daily-once guard state, one row per
// daily-gated task keyed by task name. Rows are overwritten, never appended.
type CronStateRepository struct {
	db DBTX
}

// NewCronStateRepository creates a new CronStateRepository backed by the
// given database connection (pool or transaction).
func NewCronStateRepository(db DBTX) *CronStateRepository {
	return &CronStateRepository{db: db}
}

// Get returns the guard row for a task, or nil when the task has never run.
func (r *CronStateRepository) Get(ctx context.Context, taskName string) (*types.CronState, error) {
	var (
		s       types.CronState
		summary []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT task_name, last_run_date, last_run_at, summary
		 FROM cron_state
		 WHERE task_name = $1`,
		taskName,
	).Scan(&s.TaskName, &s.LastRunDate, &s.LastRunAt, &summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query cron state", err)
	}
	s.Summary = json.RawMessage(summary)
	return &s, nil
}

// Upsert writes the guard row after a real run, overwriting any previous
// date and summary for the task.
func (r *CronStateRepository) Upsert(ctx context.Context, state *types.CronState) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cron_state (task_name, last_run_date, last_run_at, summary)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (task_name) DO UPDATE SET
		   last_run_date = EXCLUDED.last_run_date,
		   last_run_at = EXCLUDED.last_run_at,
		   summary = EXCLUDED.summary`,
		state.TaskName,
		state.LastRunDate,
		state.LastRunAt,
		[]byte(state.Summary),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert cron state", err)
	}
	return nil
}

// Claim atomically marks the task as run for the given calendar date.
// Returns true when this caller won the date, false when another pass
// already holds it.
//
// SQL pattern:
//
//	INSERT INTO cron_state (task_name, last_run_date, last_run_at, summary)
//	VALUES ($1, $2, $3, '{}')
//	ON CONFLICT (task_name) DO UPDATE
//	  SET last_run_date = EXCLUDED.last_run_date,
//	      last_run_at = EXCLUDED.last_run_at
//	  WHERE cron_state.last_run_date <> $2
//
// If the existing row already carries today's date, the ON CONFLICT WHERE
// clause prevents the update and zero rows are affected. The guard is
// best-effort across overlapping sweeps, but the conditional upsert closes
// the read-then-write race for passes sharing a database.
func (r *CronStateRepository) Claim(ctx context.Context, taskName string, runDate string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO cron_state (task_name, last_run_date, last_run_at, summary)
		 VALUES ($1, $2, $3, '{}')
		 ON CONFLICT (task_name) DO UPDATE
		   SET last_run_date = EXCLUDED.last_run_date,
		       last_run_at = EXCLUDED.last_run_at
		   WHERE cron_state.last_run_date <> $2`,
		taskName,
		runDate,
		now,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim cron state", err)
	}

	// RowsAffected is 1 if the INSERT succeeded (first ever run) or if the
	// ON CONFLICT UPDATE matched (first run of this date). It is 0 when the
	// row already carries the requested date.
	return tag.RowsAffected() > 0, nil
}
