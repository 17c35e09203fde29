package memory

import (
	"context"
	"fmt"
	"sort"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	s *Store
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(s *Store) *RefundRepo {
	return &RefundRepo{s: s}
}

// Create inserts a refund.
func (r *RefundRepo) Create(_ context.Context, tx pgx.Tx, ref *domain.Refund) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	t.write(func() {
		r.s.refunds[ref.ID] = cloneRefund(*ref)
	}, func() {
		delete(r.s.refunds, ref.ID)
	})
	return nil
}

// GetByID fetches a refund by id.
func (r *RefundRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ref, ok := r.s.refunds[id]
	if !ok {
		return nil, nil
	}
	ref = cloneRefund(ref)
	return &ref, nil
}

// GetByIDForUpdate fetches a refund inside a unit of work.
func (r *RefundRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Refund, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ListByPayment returns all refunds for a payment, oldest first.
func (r *RefundRepo) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	r.s.mu.RLock()
	var out []domain.Refund
	for _, ref := range r.s.refunds {
		if ref.PaymentID == paymentID {
			out = append(out, cloneRefund(ref))
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update stores the mutable fields of a refund.
func (r *RefundRepo) Update(_ context.Context, tx pgx.Tx, ref *domain.Refund) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	prev, ok := r.s.refunds[ref.ID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("refund not found: %s", ref.ID)
	}
	t.write(func() {
		r.s.refunds[ref.ID] = cloneRefund(*ref)
	}, func() {
		r.s.refunds[ref.ID] = prev
	})
	return nil
}
