package memory

import (
	"context"
	"sort"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

// Create appends the entry and assigns its sequence.
func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	var n int
	t.write(func() {
		r.s.seq++
		txn.Sequence = r.s.seq
		r.s.ledger = append(r.s.ledger, *txn)
		n = len(r.s.ledger)
	}, func() {
		r.s.ledger = r.s.ledger[:n-1]
		r.s.seq--
	})
	return nil
}

// List returns a page of a wallet's entries, newest first.
func (r *TransactionRepo) List(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	var matched []domain.Transaction
	for _, t := range r.s.ledger {
		if t.WalletID != params.WalletID {
			continue
		}
		if params.Kind != nil && t.Kind != *params.Kind {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(time.Unix(*params.From, 0)) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(time.Unix(*params.To, 0)) {
			continue
		}
		matched = append(matched, t)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Sequence > matched[j].Sequence })

	total := int64(len(matched))
	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// ListAllByWallet returns every entry of a wallet in sequence order.
func (r *TransactionRepo) ListAllByWallet(_ context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.s.ledger {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ExistsForPayment reports whether an entry of kind exists for the wallet and payment.
func (r *TransactionRepo) ExistsForPayment(_ context.Context, tx pgx.Tx, walletID, paymentID uuid.UUID, kind domain.TransactionKind) (bool, error) {
	if _, err := r.s.unit(tx); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.ledger {
		if t.WalletID == walletID && t.Kind == kind && t.PaymentID != nil && *t.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}
