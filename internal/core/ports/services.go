package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Actor roles carried in access tokens.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(actorID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID uuid.UUID
	Role    string
}

// ProcessedEventCache is the Redis-layer record of finished events (fast path).
type ProcessedEventCache interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, outcome domain.EventOutcome, ttl time.Duration) error
}

// RateLimiter counts requests per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult is the state of a key's window after a request.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// EventIntakeService accepts raw processor deliveries.
type EventIntakeService interface {
	Receive(ctx context.Context, payload []byte, signature string) (*IntakeResult, error)
}

// IntakeResult describes what happened to a delivery.
type IntakeResult struct {
	EventID   string
	EventType string
	Outcome   domain.EventOutcome
	Duplicate bool
}

// SettlementService moves buyer payments through capture and escrow.
type SettlementService interface {
	InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*domain.Payment, error)
	SettleCheckout(ctx context.Context, ev domain.CheckoutCompleted) (*domain.Payment, error)
	FailPayment(ctx context.Context, req PaymentFailure) (*domain.Payment, error)
	ReleaseSettlement(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error)
}

// InitiatePaymentRequest links a processor checkout session to an order.
type InitiatePaymentRequest struct {
	OrderID   uuid.UUID
	BuyerID   uuid.UUID
	SessionID string
}

// PaymentFailure identifies the payment a failure or expiry refers to.
// Any of the references may be empty; the first that resolves wins.
type PaymentFailure struct {
	SessionID       string
	PaymentIntentID string
	OrderRef        string
	Reason          string
}

// PayoutService handles seller withdrawals.
type PayoutService interface {
	RequestPayout(ctx context.Context, req PayoutRequest) (*domain.Payout, error)
	ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)
}

// PayoutRequest holds validated input for a withdrawal.
type PayoutRequest struct {
	SellerID uuid.UUID
	Amount   int64
	Currency string
}

// RefundService drives the refund dispute workflow.
type RefundService interface {
	RequestRefund(ctx context.Context, req RefundRequest) ([]domain.Refund, error)
	SellerRespond(ctx context.Context, req SellerResponse) (*domain.Refund, error)
	AdminResolve(ctx context.Context, req AdminResolution) (*domain.Refund, error)
	GetRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
}

// RefundRequest is a buyer claim. With no Items the whole payment is claimed.
type RefundRequest struct {
	PaymentID   uuid.UUID
	RequesterID uuid.UUID
	Reason      string
	Items       []RefundItemRequest
	Evidence    []string
}

// RefundItemRequest names a product line and how many units are claimed.
type RefundItemRequest struct {
	ProductID uuid.UUID
	Quantity  int64
}

// SellerResponse is a seller's action on a refund assigned to them.
type SellerResponse struct {
	RefundID uuid.UUID
	SellerID uuid.UUID
	Action   domain.SellerAction
	Note     string
	Evidence []string
}

// AdminResolution is the final ruling. Amount nil means the claimed amount.
type AdminResolution struct {
	RefundID uuid.UUID
	AdminID  uuid.UUID
	Decision domain.AdminDecision
	Amount   *int64
	Note     string
}

// WalletService exposes wallet balances, history and payout-account linking.
type WalletService interface {
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, params TransactionListParams) ([]domain.Transaction, int64, error)
	LinkPayoutAccount(ctx context.Context, ownerID uuid.UUID, accountID string) (*domain.Wallet, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*ReconcileReport, error)
}

// ReconcileReport compares stored balances with the replayed ledger.
type ReconcileReport struct {
	WalletID          uuid.UUID   `json:"wallet_id"`
	StoredAvailable   int64       `json:"stored_available"`
	StoredReserved    int64       `json:"stored_reserved"`
	ReplayedAvailable int64       `json:"replayed_available"`
	ReplayedReserved  int64       `json:"replayed_reserved"`
	Entries           int         `json:"entries"`
	Breaks            []uuid.UUID `json:"breaks,omitempty"`
	Consistent        bool        `json:"consistent"`
}
