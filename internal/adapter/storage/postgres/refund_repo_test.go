package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRefund() *domain.Refund {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Refund{
		ID:          uuid.New(),
		PaymentID:   uuid.New(),
		OrderID:     uuid.New(),
		RequesterID: uuid.New(),
		SellerID:    uuid.New(),
		Items: []domain.RefundItem{
			{ProductID: uuid.New(), Quantity: 1, Amount: 2000, ShippingPortion: 100, TaxPortion: 50},
		},
		ClaimedAmount: 2150,
		Currency:      "usd",
		Status:        domain.RefundStatusRequested,
		Reason:        "damaged",
		Evidence:      []domain.Evidence{{URL: "https://img.example/1.jpg", AddedAt: now}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func refundCols() []string {
	return []string{"id", "payment_id", "order_id", "requester_id", "seller_id", "items", "claimed_amount",
		"resolved_amount", "currency", "status", "reason", "evidence", "seller_note", "admin_note",
		"processor_refund_id", "clawback_required", "created_at", "updated_at", "resolved_at"}
}

func refundRow(t *testing.T, rows *pgxmock.Rows, r *domain.Refund) *pgxmock.Rows {
	items, err := json.Marshal(r.Items)
	require.NoError(t, err)
	evidence, err := json.Marshal(r.Evidence)
	require.NoError(t, err)
	return rows.AddRow(
		r.ID, r.PaymentID, r.OrderID, r.RequesterID, r.SellerID, items, r.ClaimedAmount,
		r.ResolvedAmount, r.Currency, r.Status, r.Reason, evidence, r.SellerNote, r.AdminNote,
		r.ProcessorRefundID, r.ClawbackRequired, r.CreatedAt, r.UpdatedAt, r.ResolvedAt,
	)
}

func TestRefundRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	r := newTestRefund()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refunds").
		WithArgs(r.ID, r.PaymentID, r.OrderID, r.RequesterID, r.SellerID, pgxmock.AnyArg(), r.ClaimedAmount,
			r.ResolvedAmount, r.Currency, r.Status, r.Reason, pgxmock.AnyArg(), r.SellerNote, r.AdminNote,
			r.ProcessorRefundID, r.ClawbackRequired, r.CreatedAt, r.UpdatedAt, r.ResolvedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	r := newTestRefund()

	mock.ExpectQuery("SELECT .+ FROM refunds WHERE id").
		WithArgs(r.ID).
		WillReturnRows(refundRow(t, pgxmock.NewRows(refundCols()), r))

	result, err := repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, r.Items, result.Items)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "https://img.example/1.jpg", result.Evidence[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_ListByPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	a, b := newTestRefund(), newTestRefund()
	b.PaymentID = a.PaymentID

	rows := pgxmock.NewRows(refundCols())
	refundRow(t, rows, a)
	refundRow(t, rows, b)
	mock.ExpectQuery("SELECT .+ FROM refunds WHERE payment_id").
		WithArgs(a.PaymentID).
		WillReturnRows(rows)

	result, err := repo.ListByPayment(context.Background(), a.PaymentID)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, a.ID, result[0].ID)
	assert.Equal(t, b.ID, result[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	r := newTestRefund()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refunds SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, r)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "refund not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
