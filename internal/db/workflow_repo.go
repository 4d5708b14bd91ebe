package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"leadloop/internal/types"
)

// dueExecutionPageSize caps how many due execution states one sweep pass
// picks up per company. Anything beyond the cap waits for the next trigger.
const dueExecutionPageSize = 50

// WorkflowRepository provides data access for workflows, their execution
// states, and the append-only run log. Workflow graphs are stored with nodes
// inline as a JSONB column.
type WorkflowRepository struct {
	db DBTX
}

// NewWorkflowRepository creates a new WorkflowRepository backed by the given
// database connection (pool or transaction).
func NewWorkflowRepository(db DBTX) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetWorkflow returns one workflow with its node graph decoded. Returns a
// not-found AppError when no such workflow exists for the company.
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, companyID, workflowID string) (*types.Workflow, error) {
	var (
		w     types.Workflow
		nodes []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, company_id, name, active, entry_node_id, nodes,
		        run_count, completed_count, updated_at
		 FROM workflows
		 WHERE company_id = $1 AND id = $2`,
		companyID,
		workflowID,
	).Scan(&w.ID, &w.CompanyID, &w.Name, &w.Active, &w.EntryNodeID, &nodes,
		&w.RunCount, &w.CompletedCount, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundWorkflow, "workflow not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query workflow", err)
	}

	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode workflow nodes", err)
	}
	return &w, nil
}

// ListDueExecutions returns the execution states the sweep should advance
// for one company: non-terminal, not paused, and due at or before now.
//
// SQL:
//
//	SELECT ... FROM workflow_execution_states
//	WHERE company_id = $1
//	  AND status IN ('active', 'waiting')
//	  AND next_execution_at <= $2
//	ORDER BY next_execution_at, id
//	LIMIT 50
//
// Ordering is deterministic: oldest due first, ties broken by id.
func (r *WorkflowRepository) ListDueExecutions(ctx context.Context, companyID string, now time.Time) ([]types.WorkflowExecutionState, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, workflow_id, COALESCE(contact_id, ''), current_node_id,
		        status, next_execution_at, executed_node_ids, COALESCE(last_error, ''),
		        started_at, completed_at
		 FROM workflow_execution_states
		 WHERE company_id = $1
		   AND status IN ('active', 'waiting')
		   AND next_execution_at <= $2
		 ORDER BY next_execution_at, id
		 LIMIT $3`,
		companyID,
		now,
		dueExecutionPageSize,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due execution states", err)
	}
	defer rows.Close()

	var states []types.WorkflowExecutionState
	for rows.Next() {
		var s types.WorkflowExecutionState
		if err := rows.Scan(
			&s.ID,
			&s.CompanyID,
			&s.WorkflowID,
			&s.ContactID,
			&s.CurrentNodeID,
			&s.Status,
			&s.NextExecutionAt,
			&s.ExecutedNodeIDs,
			&s.LastError,
			&s.StartedAt,
			&s.CompletedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan execution state", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating execution states", err)
	}

	return states, nil
}

// UpdateExecution persists the advanced state after one node execution:
// status, current node, next due time, executed node list, error, and
// completion timestamp.
func (r *WorkflowRepository) UpdateExecution(ctx context.Context, s *types.WorkflowExecutionState) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workflow_execution_states
		 SET status = $3,
		     current_node_id = $4,
		     next_execution_at = $5,
		     executed_node_ids = $6,
		     last_error = NULLIF($7, ''),
		     completed_at = $8
		 WHERE company_id = $1 AND id = $2`,
		s.CompanyID,
		s.ID,
		s.Status,
		s.CurrentNodeID,
		s.NextExecutionAt,
		s.ExecutedNodeIDs,
		s.LastError,
		s.CompletedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update execution state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundExecution, "execution state not found", nil)
	}
	return nil
}

// IncrementWorkflowCounters bumps run_count and, when the run finished,
// completed_count on the workflow record.
func (r *WorkflowRepository) IncrementWorkflowCounters(ctx context.Context, companyID, workflowID string, completed bool) error {
	completedDelta := 0
	if completed {
		completedDelta = 1
	}
	_, err := r.db.Exec(ctx,
		`UPDATE workflows
		 SET run_count = run_count + 1,
		     completed_count = completed_count + $3,
		     updated_at = NOW()
		 WHERE company_id = $1 AND id = $2`,
		companyID,
		workflowID,
		completedDelta,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment workflow counters", err)
	}
	return nil
}

// InsertRunLog appends one node execution record. Run logs are append-only;
// the retention cleaner is the only deleter.
func (r *WorkflowRepository) InsertRunLog(ctx context.Context, l *types.WorkflowRunLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO workflow_run_logs
		 (id, company_id, workflow_id, execution_id, node_id, node_name,
		  node_type, status, message, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
		l.ID,
		l.CompanyID,
		l.WorkflowID,
		l.ExecutionID,
		l.NodeID,
		l.NodeName,
		l.NodeType,
		l.Status,
		l.Message,
		l.ExecutedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert run log", err)
	}
	return nil
}

// ListRunLogsBefore returns up to limit run logs for a company executed
// before the cutoff, oldest first. Used by the retention cleaner to archive
// before deletion.
func (r *WorkflowRepository) ListRunLogsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) ([]types.WorkflowRunLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, workflow_id, execution_id, node_id, node_name,
		        node_type, status, COALESCE(message, ''), executed_at
		 FROM workflow_run_logs
		 WHERE company_id = $1 AND executed_at < $2
		 ORDER BY executed_at, id
		 LIMIT $3`,
		companyID,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query run logs", err)
	}
	defer rows.Close()

	var logs []types.WorkflowRunLog
	for rows.Next() {
		var l types.WorkflowRunLog
		if err := rows.Scan(
			&l.ID,
			&l.CompanyID,
			&l.WorkflowID,
			&l.ExecutionID,
			&l.NodeID,
			&l.NodeName,
			&l.NodeType,
			&l.Status,
			&l.Message,
			&l.ExecutedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan run log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating run logs", err)
	}

	return logs, nil
}

// DeleteRunLogs removes the given run logs by ID and returns how many rows
// were deleted.
func (r *WorkflowRepository) DeleteRunLogs(ctx context.Context, companyID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM workflow_run_logs
		 WHERE company_id = $1 AND id = ANY($2)`,
		companyID,
		ids,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete run logs", err)
	}
	return tag.RowsAffected(), nil
}
