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

func TestCronStateRepository_Get_NeverRan(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	state, err := repo.Get(context.Background(), "recurring_invoices")
	require.NoError(t, err)
	assert.Nil(t, state, "a task that never ran has no guard row")
	db.AssertExpectations(t)
}

func TestCronStateRepository_Get_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	lastRun := time.Date(2026, 8, 29, 5, 12, 0, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "recurring_invoices"
			*dest[1].(*string) = "2026-08-29"
			*dest[2].(*time.Time) = lastRun
			*dest[3].(*[]byte) = []byte(`{"issued":3}`)
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	state, err := repo.Get(context.Background(), "recurring_invoices")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "2026-08-29", state.LastRunDate)
	assert.JSONEq(t, `{"issued":3}`, string(state.Summary))
	db.AssertExpectations(t)
}

func TestCronStateRepository_Get_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	state, err := repo.Get(context.Background(), "data_cleanup")
	require.Error(t, err)
	assert.Nil(t, state)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestCronStateRepository_Claim_FirstRunOfDate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	// INSERT succeeds (first ever run) or the conditional upsert matched
	// (first run of this date) -> 1 row affected
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	won, err := repo.Claim(context.Background(), "payment_reminders", "2026-08-30", time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	db.AssertExpectations(t)
}

func TestCronStateRepository_Claim_AlreadyRanToday(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	// Row already carries today's date -> conditional upsert matches nothing
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	won, err := repo.Claim(context.Background(), "payment_reminders", "2026-08-30", time.Now())
	require.NoError(t, err)
	assert.False(t, won, "second claim of the same date must lose")
	db.AssertExpectations(t)
}

func TestCronStateRepository_Claim_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection reset"))

	won, err := repo.Claim(context.Background(), "data_cleanup", "2026-08-30", time.Now())
	require.Error(t, err)
	assert.False(t, won)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestCronStateRepository_Upsert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCronStateRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), &types.CronState{
		TaskName:    "data_cleanup",
		LastRunDate: "2026-08-30",
		LastRunAt:   time.Now(),
		Summary:     []byte(`{"companies":12}`),
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}
