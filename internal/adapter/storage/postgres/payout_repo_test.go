package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayout() *domain.Payout {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payout{
		ID:          uuid.New(),
		WalletID:    uuid.New(),
		SellerID:    uuid.New(),
		Amount:      2500,
		Currency:    "usd",
		Status:      domain.PayoutStatusQueued,
		RequestedAt: now,
		UpdatedAt:   now,
	}
}

func payoutCols() []string {
	return []string{"id", "wallet_id", "seller_id", "amount", "currency", "status", "transfer_id",
		"failure_reason", "attempts", "requested_at", "processed_at", "updated_at"}
}

func TestPayoutRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payouts").
		WithArgs(p.ID, p.WalletID, p.SellerID, p.Amount, p.Currency, p.Status, p.TransferID,
			p.FailureReason, p.Attempts, p.RequestedAt, p.ProcessedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout()
	p.TransferID = strPtr("tr_1")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(payoutCols()).AddRow(
			p.ID, p.WalletID, p.SellerID, p.Amount, p.Currency, p.Status, p.TransferID,
			p.FailureReason, p.Attempts, p.RequestedAt, p.ProcessedAt, p.UpdatedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "tr_1", *result.TransferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM payouts WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(payoutCols()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutRepo(mock)
	p := newTestPayout()
	now := time.Now().UTC()
	p.Status = domain.PayoutStatusPaid
	p.TransferID = strPtr("tr_9")
	p.ProcessedAt = &now

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs(p.Status, p.TransferID, p.FailureReason, p.Attempts, p.ProcessedAt, p.UpdatedAt, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Update(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
