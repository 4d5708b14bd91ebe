package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leadloop/internal/types"
)

func TestWorkflowRepository_GetWorkflow_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "wf_1"
			*dest[1].(*string) = "co_1"
			*dest[2].(*string) = "Welcome Drip"
			*dest[3].(*bool) = true
			*dest[4].(*string) = "n1"
			*dest[5].(*[]byte) = []byte(`[{"id":"n1","name":"Send welcome","type":"send_email","next_id":"n2"},{"id":"n2","name":"Wait","type":"delay"}]`)
			*dest[6].(*int) = 7
			*dest[7].(*int) = 5
			*dest[8].(*time.Time) = now
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	wf, err := repo.GetWorkflow(context.Background(), "co_1", "wf_1")
	require.NoError(t, err)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "n1", wf.EntryNodeID)
	assert.Equal(t, types.NodeSendEmail, wf.Nodes[0].Type)
	assert.Equal(t, "n2", wf.Nodes[0].NextID)
	require.NotNil(t, wf.Node("n2"))
	assert.Nil(t, wf.Node("missing"))
	db.AssertExpectations(t)
}

func TestWorkflowRepository_GetWorkflow_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	wf, err := repo.GetWorkflow(context.Background(), "co_1", "wf_missing")
	require.Error(t, err)
	assert.Nil(t, wf)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundWorkflow, appErr.Code)
}

func TestWorkflowRepository_ListDueExecutions_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	rows := newMockRows(
		func(dest ...any) error {
			*dest[0].(*string) = "ex_1"
			*dest[1].(*string) = "co_1"
			*dest[2].(*string) = "wf_1"
			*dest[3].(*string) = "contact_9"
			*dest[4].(*string) = "n1"
			*dest[5].(*types.ExecutionStatus) = types.ExecutionActive
			*dest[6].(*time.Time) = now.Add(-time.Minute)
			*dest[7].(*[]string) = []string{}
			*dest[8].(*string) = ""
			*dest[9].(*time.Time) = now.Add(-time.Hour)
			return nil
		},
	)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		// company id, now, page cap
		return len(args) == 3 && args[0] == "co_1" && args[2] == dueExecutionPageSize
	})).Return(rows, nil)

	states, err := repo.ListDueExecutions(context.Background(), "co_1", now)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "ex_1", states[0].ID)
	assert.Equal(t, types.ExecutionActive, states[0].Status)
	db.AssertExpectations(t)
}

func TestWorkflowRepository_UpdateExecution_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateExecution(context.Background(), &types.WorkflowExecutionState{
		ID:        "ex_missing",
		CompanyID: "co_1",
		Status:    types.ExecutionFailed,
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundExecution, appErr.Code)
}

func TestWorkflowRepository_UpdateExecution_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	completedAt := time.Now().UTC()
	err := repo.UpdateExecution(context.Background(), &types.WorkflowExecutionState{
		ID:              "ex_1",
		CompanyID:       "co_1",
		Status:          types.ExecutionCompleted,
		CurrentNodeID:   "n2",
		ExecutedNodeIDs: []string{"n1", "n2"},
		CompletedAt:     &completedAt,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestWorkflowRepository_DeleteRunLogs_EmptyIDs(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	// No Exec expectation: an empty id list must short-circuit.
	n, err := repo.DeleteRunLogs(context.Background(), "co_1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	db.AssertExpectations(t)
}

func TestWorkflowRepository_DeleteRunLogs_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewWorkflowRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 2"), nil)

	n, err := repo.DeleteRunLogs(context.Background(), "co_1", []string{"log_1", "log_2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	db.AssertExpectations(t)
}
