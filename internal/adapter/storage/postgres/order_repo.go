package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository against the order subsystem's
// tables in the shared database.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderQuery = `SELECT id, buyer_id, currency, status, shipping_amount, tax_amount, created_at
	FROM orders WHERE id = $1`

const orderItemsQuery = `SELECT product_id, seller_id, quantity, unit_price
	FROM order_items WHERE order_id = $1 ORDER BY product_id`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *OrderRepo) load(ctx context.Context, q querier, query string, id uuid.UUID) (*domain.Order, error) {
	o := &domain.Order{}
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.BuyerID, &o.Currency, &o.Status, &o.ShippingAmount, &o.TaxAmount, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.Query(ctx, orderItemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.SellerID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

// GetOrder fetches an order with its items.
func (r *OrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.load(ctx, r.pool, orderQuery, id)
}

// GetOrderForUpdate fetches an order and locks its row.
func (r *OrderRepo) GetOrderForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.load(ctx, tx, orderQuery+" FOR UPDATE", id)
}

// SetOrderStatus changes an order's status.
func (r *OrderRepo) SetOrderStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

// RestoreStock returns units to a product's stock.
func (r *OrderRepo) RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int64) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2`, quantity, productID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}
	return nil
}
