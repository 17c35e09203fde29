package memory

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository over orders seeded with PutOrder.
type OrderRepo struct {
	s *Store
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(s *Store) *OrderRepo {
	return &OrderRepo{s: s}
}

// GetOrder fetches an order by id.
func (r *OrderRepo) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

// GetOrderForUpdate fetches an order inside a unit of work.
func (r *OrderRepo) GetOrderForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	if _, err := r.s.unit(tx); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

// SetOrderStatus changes an order's status.
func (r *OrderRepo) SetOrderStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	prev, ok := r.s.orders[id]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("order not found: %s", id)
	}
	t.write(func() {
		o := r.s.orders[id]
		o.Status = status
		r.s.orders[id] = o
	}, func() {
		r.s.orders[id] = prev
	})
	return nil
}

// RestoreStock returns quantity units of a product to stock.
func (r *OrderRepo) RestoreStock(_ context.Context, tx pgx.Tx, productID uuid.UUID, quantity int64) error {
	t, err := r.s.unit(tx)
	if err != nil {
		return err
	}
	t.write(func() {
		r.s.stock[productID] += quantity
	}, func() {
		r.s.stock[productID] -= quantity
	})
	return nil
}
