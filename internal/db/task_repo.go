package db

import (
	"context"
	"time"

	"leadloop/internal/types"
)

// TaskRepository provides read access to CRM tasks for the daily digest.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a new TaskRepository backed by the given
// database connection (pool or transaction).
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListDueForDay returns a company's open tasks due inside [dayStart,
// dayEnd), earliest due first.
func (r *TaskRepository) ListDueForDay(ctx context.Context, companyID string, dayStart, dayEnd time.Time) ([]types.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, assignee_email, title, due_at, completed, completed_at
		 FROM tasks
		 WHERE company_id = $1
		   AND NOT completed
		   AND due_at >= $2 AND due_at < $3
		 ORDER BY due_at, id`,
		companyID,
		dayStart,
		dayEnd,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due tasks", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(
			&t.ID,
			&t.CompanyID,
			&t.AssigneeEmail,
			&t.Title,
			&t.DueAt,
			&t.Completed,
			&t.CompletedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating tasks", err)
	}

	return tasks, nil
}

// CountDayOutcomes returns how many of a company's tasks due inside
// [dayStart, dayEnd) were completed and how many remain open, for the
// end-of-day recap.
func (r *TaskRepository) CountDayOutcomes(ctx context.Context, companyID string, dayStart, dayEnd time.Time) (completed int, open int, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE completed),
		        COUNT(*) FILTER (WHERE NOT completed)
		 FROM tasks
		 WHERE company_id = $1 AND due_at >= $2 AND due_at < $3`,
		companyID,
		dayStart,
		dayEnd,
	).Scan(&completed, &open)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count task outcomes", err)
	}
	return completed, open, nil
}
