package postgres

import (
	"context"
	"fmt"
	"strings"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `seq, id, wallet_id, kind, balance_type, amount, currency, balance_before, balance_after,
	order_id, payment_id, payout_id, refund_id, description, created_at`

// TransactionRepo implements ports.TransactionRepository over ledger_transactions.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends an entry within a database transaction and reads back its sequence.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO ledger_transactions (id, wallet_id, kind, balance_type, amount, currency,
		balance_before, balance_after, order_id, payment_id, payout_id, refund_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		t.ID, t.WalletID, t.Kind, t.Balance, t.Amount, t.Currency,
		t.BalanceBefore, t.BalanceAfter, t.OrderID, t.PaymentID, t.PayoutID, t.RefundID,
		t.Description, t.CreatedAt,
	).Scan(&t.Sequence)
	if err != nil {
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

func scanLedgerRows(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.Sequence, &t.ID, &t.WalletID, &t.Kind, &t.Balance, &t.Amount, &t.Currency,
			&t.BalanceBefore, &t.BalanceAfter,
			&t.OrderID, &t.PaymentID, &t.PayoutID, &t.RefundID,
			&t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return txns, nil
}

// List returns a filtered, paginated page of a wallet's entries, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_transactions %s ORDER BY seq DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger transactions: %w", err)
	}
	txns, err := scanLedgerRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListAllByWallet returns a wallet's full ledger in sequence order.
func (r *TransactionRepo) ListAllByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions WHERE wallet_id = $1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list wallet ledger: %w", err)
	}
	return scanLedgerRows(rows)
}

// ExistsForPayment reports whether an entry of kind is already posted for the wallet and payment.
func (r *TransactionRepo) ExistsForPayment(ctx context.Context, tx pgx.Tx, walletID, paymentID uuid.UUID, kind domain.TransactionKind) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE wallet_id = $1 AND payment_id = $2 AND kind = $3)`

	var exists bool
	if err := tx.QueryRow(ctx, query, walletID, paymentID, kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}
