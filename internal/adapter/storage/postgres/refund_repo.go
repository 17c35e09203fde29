package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const refundColumns = `id, payment_id, order_id, requester_id, seller_id, items, claimed_amount, resolved_amount,
	currency, status, reason, evidence, seller_note, admin_note, processor_refund_id, clawback_required,
	created_at, updated_at, resolved_at`

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	ref := &domain.Refund{}
	var items, evidence []byte
	err := row.Scan(
		&ref.ID, &ref.PaymentID, &ref.OrderID, &ref.RequesterID, &ref.SellerID,
		&items, &ref.ClaimedAmount, &ref.ResolvedAmount, &ref.Currency, &ref.Status,
		&ref.Reason, &evidence, &ref.SellerNote, &ref.AdminNote,
		&ref.ProcessorRefundID, &ref.ClawbackRequired,
		&ref.CreatedAt, &ref.UpdatedAt, &ref.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &ref.Items); err != nil {
			return nil, fmt.Errorf("decode refund items: %w", err)
		}
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &ref.Evidence); err != nil {
			return nil, fmt.Errorf("decode refund evidence: %w", err)
		}
	}
	return ref, nil
}

func encodeRefundDocs(ref *domain.Refund) (items, evidence []byte, err error) {
	if items, err = json.Marshal(nonNil(ref.Items)); err != nil {
		return nil, nil, fmt.Errorf("encode refund items: %w", err)
	}
	if evidence, err = json.Marshal(nonNil(ref.Evidence)); err != nil {
		return nil, nil, fmt.Errorf("encode refund evidence: %w", err)
	}
	return items, evidence, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Create inserts a refund within a database transaction.
func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, ref *domain.Refund) error {
	items, evidence, err := encodeRefundDocs(ref)
	if err != nil {
		return err
	}

	query := `INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = tx.Exec(ctx, query,
		ref.ID, ref.PaymentID, ref.OrderID, ref.RequesterID, ref.SellerID,
		items, ref.ClaimedAmount, ref.ResolvedAmount, ref.Currency, ref.Status,
		ref.Reason, evidence, ref.SellerNote, ref.AdminNote,
		ref.ProcessorRefundID, ref.ClawbackRequired,
		ref.CreatedAt, ref.UpdatedAt, ref.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByID fetches a refund by id (non-locking read).
func (r *RefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	ref, err := scanRefund(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund by id: %w", err)
	}
	return ref, nil
}

// GetByIDForUpdate fetches a refund with pessimistic locking.
func (r *RefundRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1 FOR UPDATE`

	ref, err := scanRefund(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund for update: %w", err)
	}
	return ref, nil
}

// ListByPayment returns all refunds filed against a payment, oldest first.
func (r *RefundRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var out []domain.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refund row: %w", err)
		}
		out = append(out, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund rows: %w", err)
	}
	return out, nil
}

// Update writes the mutable fields of a refund.
func (r *RefundRepo) Update(ctx context.Context, tx pgx.Tx, ref *domain.Refund) error {
	_, evidence, err := encodeRefundDocs(ref)
	if err != nil {
		return err
	}

	query := `UPDATE refunds SET status = $1, resolved_amount = $2, evidence = $3, seller_note = $4,
		admin_note = $5, processor_refund_id = $6, clawback_required = $7, updated_at = $8, resolved_at = $9
		WHERE id = $10`

	tag, err := tx.Exec(ctx, query,
		ref.Status, ref.ResolvedAmount, evidence, ref.SellerNote,
		ref.AdminNote, ref.ProcessorRefundID, ref.ClawbackRequired, ref.UpdatedAt, ref.ResolvedAt,
		ref.ID,
	)
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund not found: %s", ref.ID)
	}
	return nil
}
