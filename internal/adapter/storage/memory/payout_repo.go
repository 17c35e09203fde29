package memory

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	s *Store
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(s *Store) *PayoutRepo {
	return &PayoutRepo{s: s}
}

// Create inserts a payout.
func (r *PayoutRepo) Create(_ context.Context, tx pgx.Tx, p *domain.Payout) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	t.write(func() {
		r.s.payouts[p.ID] = *p
	}, func() {
		delete(r.s.payouts, p.ID)
	})
	return nil
}

// GetByID fetches a payout by id.
func (r *PayoutRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payout, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetByIDForUpdate fetches a payout inside a unit of work.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update stores the mutable fields of a payout.
func (r *PayoutRepo) Update(_ context.Context, tx pgx.Tx, p *domain.Payout) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	prev, ok := r.s.payouts[p.ID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	t.write(func() {
		r.s.payouts[p.ID] = *p
	}, func() {
		r.s.payouts[p.ID] = prev
	})
	return nil
}
