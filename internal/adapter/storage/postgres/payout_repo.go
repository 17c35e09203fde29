package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, wallet_id, seller_id, amount, currency, status, transfer_id, failure_reason,
	attempts, requested_at, processed_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	p := &domain.Payout{}
	err := row.Scan(
		&p.ID, &p.WalletID, &p.SellerID, &p.Amount, &p.Currency, &p.Status,
		&p.TransferID, &p.FailureReason, &p.Attempts,
		&p.RequestedAt, &p.ProcessedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Create inserts a payout within a database transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.WalletID, p.SellerID, p.Amount, p.Currency, p.Status,
		p.TransferID, p.FailureReason, p.Attempts,
		p.RequestedAt, p.ProcessedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID fetches a payout by id (non-locking read).
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

	p, err := scanPayout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a payout with pessimistic locking.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR UPDATE`

	p, err := scanPayout(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get payout for update: %w", err)
	}
	return p, nil
}

// Update writes the mutable fields of a payout.
func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `UPDATE payouts SET status = $1, transfer_id = $2, failure_reason = $3, attempts = $4,
		processed_at = $5, updated_at = $6 WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.TransferID, p.FailureReason, p.Attempts, p.ProcessedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}
