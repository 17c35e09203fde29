package ports

import (
	"context"
	"errors"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrConflict is returned by Create methods when a unique key is already taken.
var ErrConflict = errors.New("record already exists")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts the wallet unless the owner already has one.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	SetPayoutAccount(ctx context.Context, walletID uuid.UUID, sealed string) error
}

// TransactionRepository persists the append-only ledger.
type TransactionRepository interface {
	// Create appends the entry and sets its Sequence.
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	ListAllByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	ExistsForPayment(ctx context.Context, tx pgx.Tx, walletID, paymentID uuid.UUID, kind domain.TransactionKind) (bool, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	WalletID uuid.UUID
	Kind     *domain.TransactionKind
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// PaymentRepository defines persistence operations for buyer payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	GetBySessionForUpdate(ctx context.Context, tx pgx.Tx, sessionID string) (*domain.Payment, error)
	GetByIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (*domain.Payment, error)
	// GetLatestByOrderForUpdate returns the most recent payment for the order.
	GetLatestByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
}

// PayoutRepository defines persistence operations for payouts.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error)
	Update(ctx context.Context, tx pgx.Tx, payout *domain.Payout) error
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Refund, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error)
	Update(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
}

// EventLogRepository records processor events by id.
type EventLogRepository interface {
	// Insert stores a new log in the processing state. It returns false when
	// the event id is already recorded.
	Insert(ctx context.Context, entry *domain.ProcessorEventLog) (bool, error)
	Get(ctx context.Context, eventID string) (*domain.ProcessorEventLog, error)
	// Claim moves a failed log, or a processing log not touched since
	// staleBefore, back to processing. It returns false when another
	// delivery holds the event or it already reached a final outcome.
	Claim(ctx context.Context, eventID string, staleBefore time.Time) (bool, error)
	RecordOutcome(ctx context.Context, eventID string, outcome domain.EventOutcome, errMsg *string) error
}

// OrderRepository is the ledger's access to the order subsystem.
type OrderRepository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
	RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int64) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
