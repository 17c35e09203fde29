package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		ActorRole:    "admin",
		Action:       domain.AuditActionRefundResolve,
		ResourceType: "refund",
		ResourceID:   uuid.NewString(),
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, entry.ActorRole, string(entry.Action), entry.ResourceType,
			entry.ResourceID, nil, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", h.Name())

	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"ok"}).AddRow(true))
	assert.NoError(t, h.Ping(context.Background()))

	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"ok"}).AddRow(false))
	assert.ErrorIs(t, h.Ping(context.Background()), errSchemaMissing)

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("connection refused"))
	assert.Error(t, h.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = 5000").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectRollback()

	tx, err := NewTransactor(mock, 5*time.Second).Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin_NoLockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := NewTransactor(mock, 0).Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin_LockTimeoutFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnError(errors.New("conn busy"))
	mock.ExpectRollback()

	_, err = NewTransactor(mock, time.Second).Begin(context.Background())
	assert.ErrorContains(t, err, "set lock timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
