// Package memory is an in-process implementation of the ledger repositories,
// used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds all ledger state. A unit of work owns the store exclusively
// from Begin until Commit or Rollback, which gives every locked read the
// isolation of SELECT ... FOR UPDATE.
type Store struct {
	sem chan struct{}
	mu  sync.RWMutex

	wallets  map[uuid.UUID]domain.Wallet
	owners   map[uuid.UUID]uuid.UUID // owner id -> wallet id
	ledger   []domain.Transaction
	seq      int64
	payments map[uuid.UUID]domain.Payment
	payouts  map[uuid.UUID]domain.Payout
	refunds  map[uuid.UUID]domain.Refund
	events   map[string]domain.ProcessorEventLog
	orders   map[uuid.UUID]domain.Order
	stock    map[uuid.UUID]int64
	audits   []domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:      make(chan struct{}, 1),
		wallets:  map[uuid.UUID]domain.Wallet{},
		owners:   map[uuid.UUID]uuid.UUID{},
		payments: map[uuid.UUID]domain.Payment{},
		payouts:  map[uuid.UUID]domain.Payout{},
		refunds:  map[uuid.UUID]domain.Refund{},
		events:   map[string]domain.ProcessorEventLog{},
		orders:   map[uuid.UUID]domain.Order{},
		stock:    map[uuid.UUID]int64{},
	}
}

// Tx is a unit of work on a Store. Only Commit and Rollback are supported;
// the embedded pgx.Tx is nil and must not be used for SQL.
type Tx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

// Begin implements ports.DBTransactor. It blocks until no other unit of
// work is open or ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.sem <- struct{}{}:
		return &Tx{store: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Commit keeps all writes made through the unit of work.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	<-t.store.sem
	return nil
}

// Rollback reverts all writes made through the unit of work.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	<-t.store.sem
	return nil
}

func (s *Store) unit(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// write runs fn under the store lock and records revert for rollback.
// Callers must hold no lock.
func (t *Tx) write(fn func(), revert func()) {
	t.store.mu.Lock()
	fn()
	t.undo = append(t.undo, revert)
	t.store.mu.Unlock()
}

// --- seeding helpers for the order subsystem view ---

// PutOrder stores an order as the order subsystem would.
func (s *Store) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

// SetStock sets the stock level of a product.
func (s *Store) SetStock(productID uuid.UUID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = qty
}

// Stock returns the stock level of a product.
func (s *Store) Stock(productID uuid.UUID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[productID]
}

// AuditLogs returns every persisted audit entry.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audits...)
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func clonePayment(p domain.Payment) domain.Payment {
	p.Breakdown = append([]domain.SellerSettlement(nil), p.Breakdown...)
	return p
}

func cloneRefund(r domain.Refund) domain.Refund {
	r.Items = append([]domain.RefundItem(nil), r.Items...)
	r.Evidence = append([]domain.Evidence(nil), r.Evidence...)
	return r
}

func nowUTC() time.Time { return time.Now().UTC() }
