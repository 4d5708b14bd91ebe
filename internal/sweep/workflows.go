package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadloop/internal/types"
	"leadloop/internal/workflow"
)

// CompanyLister provides tenant iteration for the cross-company runners.
type CompanyLister interface {
	ListActive(ctx context.Context) ([]types.Company, error)
}

// WorkflowStore is the persistence contract for the workflow-step runner.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, companyID, workflowID string) (*types.Workflow, error)
	ListDueExecutions(ctx context.Context, companyID string, now time.Time) ([]types.WorkflowExecutionState, error)
	UpdateExecution(ctx context.Context, s *types.WorkflowExecutionState) error
	IncrementWorkflowCounters(ctx context.Context, companyID, workflowID string, completed bool) error
	InsertRunLog(ctx context.Context, l *types.WorkflowRunLog) error
}

// NodeExecutor executes a single workflow node.
type NodeExecutor interface {
	ExecuteNode(ctx context.Context, node *types.WorkflowNode, state *types.WorkflowExecutionState) workflow.StepResult
}

// WorkflowSweeper advances due workflow execution states one node per pass.
// It deliberately never runs a workflow to completion in one call: per-sweep
// latency stays bounded and long chains advance gradually across triggers.
type WorkflowSweeper struct {
	companies CompanyLister
	store     WorkflowStore
	executor  NodeExecutor
	logger    *slog.Logger
}

// NewWorkflowSweeper creates a WorkflowSweeper.
func NewWorkflowSweeper(companies CompanyLister, store WorkflowStore, executor NodeExecutor, logger *slog.Logger) *WorkflowSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowSweeper{
		companies: companies,
		store:     store,
		executor:  executor,
		logger:    logger,
	}
}

// Run implements Runner. Company-level errors are recorded and the loop over
// remaining tenants continues; state-level errors mark only that state.
func (s *WorkflowSweeper) Run(ctx context.Context, now time.Time) TaskResult {
	companies, err := s.companies.ListActive(ctx)
	if err != nil {
		return failure(fmt.Errorf("listing companies: %w", err))
	}

	var (
		processed     int
		completed     int
		failed        int
		companyErrors []string
	)

	for _, company := range companies {
		states, err := s.store.ListDueExecutions(ctx, company.ID, now)
		if err != nil {
			companyErrors = append(companyErrors, fmt.Sprintf("%s: %v", company.ID, err))
			s.logger.ErrorContext(ctx, "due-execution query failed",
				"company_id", company.ID,
				"error", err.Error(),
			)
			continue
		}

		for i := range states {
			state := &states[i]
			outcome, err := s.advance(ctx, state, now)
			if err != nil {
				companyErrors = append(companyErrors, fmt.Sprintf("%s/%s: %v", company.ID, state.ID, err))
				s.logger.ErrorContext(ctx, "failed to advance execution",
					"company_id", company.ID,
					"execution_id", state.ID,
					"error", err.Error(),
				)
				continue
			}
			processed++
			switch outcome {
			case types.ExecutionCompleted:
				completed++
			case types.ExecutionFailed:
				failed++
			}
		}
	}

	details := map[string]any{
		"companies": len(companies),
		"processed": processed,
		"completed": completed,
		"failed":    failed,
	}
	if len(companyErrors) > 0 {
		details["errors"] = companyErrors
	}

	return TaskResult{Success: true, Details: details, Items: processed}
}

// advance moves one execution state exactly one node forward and persists the
// result. The returned status is the state's status after this pass.
func (s *WorkflowSweeper) advance(ctx context.Context, state *types.WorkflowExecutionState, now time.Time) (types.ExecutionStatus, error) {
	wf, err := s.store.GetWorkflow(ctx, state.CompanyID, state.WorkflowID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundWorkflow {
			state.Status = types.ExecutionFailed
			state.LastError = fmt.Sprintf("workflow %s not found", state.WorkflowID)
			return state.Status, s.store.UpdateExecution(ctx, state)
		}
		return state.Status, fmt.Errorf("loading workflow %s: %w", state.WorkflowID, err)
	}

	if !wf.Active {
		state.Status = types.ExecutionPaused
		return state.Status, s.store.UpdateExecution(ctx, state)
	}

	node := wf.Node(state.CurrentNodeID)
	if node == nil {
		state.Status = types.ExecutionFailed
		state.LastError = fmt.Sprintf("node %s not found in workflow %s", state.CurrentNodeID, wf.ID)
		return state.Status, s.store.UpdateExecution(ctx, state)
	}

	res := s.executor.ExecuteNode(ctx, node, state)
	s.appendRunLog(ctx, state, node, res, now)

	if !res.Success {
		state.Status = types.ExecutionFailed
		if res.Err != nil {
			state.LastError = res.Err.Error()
		}
		return state.Status, s.store.UpdateExecution(ctx, state)
	}

	state.ExecutedNodeIDs = append(state.ExecutedNodeIDs, node.ID)
	state.LastError = ""

	next := wf.Node(res.NextNodeID)
	if res.NextNodeID == "" || next == nil {
		completedAt := now
		state.Status = types.ExecutionCompleted
		state.CompletedAt = &completedAt
		if err := s.store.UpdateExecution(ctx, state); err != nil {
			return state.Status, err
		}
		if err := s.store.IncrementWorkflowCounters(ctx, state.CompanyID, wf.ID, true); err != nil {
			// Counters are informational; the run itself is already final.
			s.logger.ErrorContext(ctx, "failed to increment workflow counters",
				"workflow_id", wf.ID,
				"error", err.Error(),
			)
		}
		return state.Status, nil
	}

	state.CurrentNodeID = next.ID
	if next.Type == types.NodeDelay {
		var delay types.DelayConfig
		if err := json.Unmarshal(next.Config, &delay); err != nil {
			state.Status = types.ExecutionFailed
			state.LastError = fmt.Sprintf("invalid delay config on node %s", next.ID)
			return state.Status, s.store.UpdateExecution(ctx, state)
		}
		state.Status = types.ExecutionWaiting
		state.NextExecutionAt = now.Add(delay.Duration())
	} else {
		state.Status = types.ExecutionActive
		state.NextExecutionAt = now.Add(time.Second)
	}

	return state.Status, s.store.UpdateExecution(ctx, state)
}

// appendRunLog records the node attempt. The run log is an audit trail; a
// write failure must not change the execution outcome.
func (s *WorkflowSweeper) appendRunLog(ctx context.Context, state *types.WorkflowExecutionState, node *types.WorkflowNode, res workflow.StepResult, now time.Time) {
	status := types.RunLogSuccess
	message := res.Message
	if !res.Success {
		status = types.RunLogFailed
		if res.Err != nil {
			message = res.Err.Error()
		}
	}

	entry := &types.WorkflowRunLog{
		ID:          uuid.New().String(),
		CompanyID:   state.CompanyID,
		WorkflowID:  state.WorkflowID,
		ExecutionID: state.ID,
		NodeID:      node.ID,
		NodeName:    node.Name,
		NodeType:    node.Type,
		Status:      status,
		Message:     message,
		ExecutedAt:  now,
	}
	if err := s.store.InsertRunLog(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to insert run log",
			"execution_id", state.ID,
			"node_id", node.ID,
			"error", err.Error(),
		)
	}
}
