package memory

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	s *Store
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(s *Store) *PaymentRepo {
	return &PaymentRepo{s: s}
}

// Create inserts a payment. Session ids are unique.
func (r *PaymentRepo) Create(_ context.Context, tx pgx.Tx, p *domain.Payment) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	for _, existing := range r.s.payments {
		if existing.SessionID == p.SessionID {
			r.s.mu.RUnlock()
			return fmt.Errorf("insert payment: session %s: %w", p.SessionID, ports.ErrConflict)
		}
	}
	r.s.mu.RUnlock()
	t.write(func() {
		r.s.payments[p.ID] = clonePayment(*p)
	}, func() {
		delete(r.s.payments, p.ID)
	})
	return nil
}

// GetByID fetches a payment by id.
func (r *PaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, nil
	}
	p = clonePayment(p)
	return &p, nil
}

// GetByIDForUpdate fetches a payment inside a unit of work.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetBySessionForUpdate fetches the payment for a checkout session.
func (r *PaymentRepo) GetBySessionForUpdate(_ context.Context, tx pgx.Tx, sessionID string) (*domain.Payment, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.find(func(p *domain.Payment) bool { return p.SessionID == sessionID }), nil
}

// GetByIntentForUpdate fetches the payment carrying a payment intent.
func (r *PaymentRepo) GetByIntentForUpdate(_ context.Context, tx pgx.Tx, intentID string) (*domain.Payment, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.find(func(p *domain.Payment) bool {
		return p.PaymentIntentID != nil && *p.PaymentIntentID == intentID
	}), nil
}

// GetLatestByOrderForUpdate fetches the newest payment for an order.
func (r *PaymentRepo) GetLatestByOrderForUpdate(_ context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.find(func(p *domain.Payment) bool { return p.OrderID == orderID }), nil
}

// find returns the newest payment matching fn.
func (r *PaymentRepo) find(fn func(*domain.Payment) bool) *domain.Payment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *domain.Payment
	for _, p := range r.s.payments {
		p := p
		if !fn(&p) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = &p
		}
	}
	if best == nil {
		return nil
	}
	out := clonePayment(*best)
	return &out
}

// Update stores the mutable fields of a payment.
func (r *PaymentRepo) Update(_ context.Context, tx pgx.Tx, p *domain.Payment) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	prev, ok := r.s.payments[p.ID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("payment not found: %s", p.ID)
	}
	t.write(func() {
		r.s.payments[p.ID] = clonePayment(*p)
	}, func() {
		r.s.payments[p.ID] = prev
	})
	return nil
}
