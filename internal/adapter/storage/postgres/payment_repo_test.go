package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment() *domain.Payment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:              uuid.New(),
		SessionID:       "cs_test_123",
		PaymentIntentID: strPtr("pi_123"),
		BuyerID:         uuid.New(),
		OrderID:         uuid.New(),
		Amount:          5000,
		Currency:        "usd",
		Status:          domain.PaymentStatusPaid,
		Breakdown: []domain.SellerSettlement{
			{SellerID: uuid.New(), Gross: 5000, Fee: 750, Net: 4250},
		},
		CapturedAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func paymentCols() []string {
	return []string{"id", "session_id", "payment_intent_id", "buyer_id", "order_id", "amount", "currency",
		"status", "refunded_amount", "breakdown", "captured_at", "created_at", "updated_at"}
}

func paymentRow(t *testing.T, p *domain.Payment) *pgxmock.Rows {
	breakdown, err := json.Marshal(p.Breakdown)
	require.NoError(t, err)
	return pgxmock.NewRows(paymentCols()).AddRow(
		p.ID, p.SessionID, p.PaymentIntentID, p.BuyerID, p.OrderID, p.Amount, p.Currency,
		p.Status, p.RefundedAmount, breakdown, p.CapturedAt, p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(p.ID, p.SessionID, p.PaymentIntentID, p.BuyerID, p.OrderID, p.Amount, p.Currency,
			p.Status, p.RefundedAmount, pgxmock.AnyArg(), p.CapturedAt, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create_DuplicateSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_session_id_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, p)
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetBySessionForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE session_id = \\$1 FOR UPDATE").
		WithArgs(p.SessionID).
		WillReturnRows(paymentRow(t, p))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetBySessionForUpdate(context.Background(), tx, p.SessionID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, p.Breakdown, result.Breakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetLatestByOrderForUpdate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE order_id = \\$1\\s+ORDER BY created_at DESC LIMIT 1 FOR UPDATE").
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(paymentCols()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetLatestByOrderForUpdate(context.Background(), tx, orderID)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()
	p.RefundedAmount = 1000
	p.Status = domain.PaymentStatusPartiallyRefunded

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET").
		WithArgs(p.PaymentIntentID, p.Status, p.RefundedAmount, p.CapturedAt, p.UpdatedAt, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Update(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
