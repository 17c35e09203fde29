package memory

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

// Create inserts the wallet unless the owner already has one.
func (r *WalletRepo) Create(_ context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, exists := r.s.owners[w.OwnerID]
	r.s.mu.RUnlock()
	if exists {
		return nil
	}
	t.write(func() {
		r.s.wallets[w.ID] = *w
		r.s.owners[w.OwnerID] = w.ID
	}, func() {
		delete(r.s.wallets, w.ID)
		delete(r.s.owners, w.OwnerID)
	})
	return nil
}

// GetByID fetches a wallet by id.
func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetByOwner fetches the wallet belonging to ownerID.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	id, ok := r.s.owners[ownerID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// GetByIDForUpdate fetches a wallet inside a unit of work.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByOwnerForUpdate fetches an owner's wallet inside a unit of work.
func (r *WalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetByOwner(ctx, ownerID)
}

// UpdateBalances stores both balances of w.
func (r *WalletRepo) UpdateBalances(_ context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	prev, ok := r.s.wallets[w.ID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	if w.AvailableBalance < 0 || w.ReservedBalance < 0 {
		return fmt.Errorf("update wallet balances: %w", domain.ErrNegativeBalance)
	}
	t.write(func() {
		cur := r.s.wallets[w.ID]
		cur.AvailableBalance = w.AvailableBalance
		cur.ReservedBalance = w.ReservedBalance
		cur.UpdatedAt = w.UpdatedAt
		r.s.wallets[w.ID] = cur
	}, func() {
		r.s.wallets[w.ID] = prev
	})
	return nil
}

// SetPayoutAccount stores the sealed payout destination.
func (r *WalletRepo) SetPayoutAccount(_ context.Context, walletID uuid.UUID, sealed string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	w.PayoutAccountEnc = &sealed
	w.UpdatedAt = nowUTC()
	r.s.wallets[walletID] = w
	return nil
}
