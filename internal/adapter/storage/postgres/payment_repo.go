package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, session_id, payment_intent_id, buyer_id, order_id, amount, currency, status,
	refunded_amount, breakdown, captured_at, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var breakdown []byte
	err := row.Scan(
		&p.ID, &p.SessionID, &p.PaymentIntentID, &p.BuyerID, &p.OrderID,
		&p.Amount, &p.Currency, &p.Status, &p.RefundedAmount,
		&breakdown, &p.CapturedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &p.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return p, nil
}

// Create inserts a payment within a database transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	breakdown, err := json.Marshal(p.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.SessionID, p.PaymentIntentID, p.BuyerID, p.OrderID,
		p.Amount, p.Currency, p.Status, p.RefundedAmount,
		breakdown, p.CapturedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert payment: %w", ports.ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by id (non-locking read).
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.one(r.pool.QueryRow(ctx, query, id), "get payment by id")
}

// GetByIDForUpdate fetches a payment with pessimistic locking.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, id), "get payment for update")
}

// GetBySessionForUpdate fetches the payment of a checkout session with pessimistic locking.
func (r *PaymentRepo) GetBySessionForUpdate(ctx context.Context, tx pgx.Tx, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, sessionID), "get payment by session")
}

// GetByIntentForUpdate fetches the payment of a payment intent with pessimistic locking.
func (r *PaymentRepo) GetByIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_intent_id = $1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, intentID), "get payment by intent")
}

// GetLatestByOrderForUpdate fetches the newest payment of an order with pessimistic locking.
func (r *PaymentRepo) GetLatestByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1
		ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	return r.one(tx.QueryRow(ctx, query, orderID), "get payment by order")
}

func (r *PaymentRepo) one(row pgx.Row, op string) (*domain.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Update writes the mutable fields of a payment.
func (r *PaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `UPDATE payments SET payment_intent_id = $1, status = $2, refunded_amount = $3,
		captured_at = $4, updated_at = $5 WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		p.PaymentIntentID, p.Status, p.RefundedAmount, p.CapturedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", p.ID)
	}
	return nil
}
