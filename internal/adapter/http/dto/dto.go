package dto

import (
	"time"

	"marketplace-ledger/internal/core/domain"
)

// InitiatePaymentRequest links a processor checkout session to an order.
type InitiatePaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required,uuid"`
	SessionID string `json:"session_id" binding:"required,max=255,safe_id"`
}

// PayoutRequest is the request body for a seller withdrawal.
type PayoutRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,currency_code"`
}

// LinkPayoutAccountRequest names the processor connected account to pay out to.
type LinkPayoutAccountRequest struct {
	AccountID string `json:"account_id" binding:"required,max=255,safe_id"`
}

// RefundItemRequest is one claimed product line.
type RefundItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

// RefundRequest is the request body for a buyer refund claim.
type RefundRequest struct {
	PaymentID string              `json:"payment_id" binding:"required,uuid"`
	Reason    string              `json:"reason" binding:"required,max=1000"`
	Items     []RefundItemRequest `json:"items,omitempty" binding:"omitempty,max=50,dive"`
	Evidence  []string            `json:"evidence,omitempty" binding:"omitempty,max=10,dive,safe_url"`
}

// SellerRespondRequest is the request body for a seller's refund response.
type SellerRespondRequest struct {
	Action   string   `json:"action" binding:"required,oneof=provide_proof accept reject"`
	Note     string   `json:"note,omitempty" binding:"max=1000"`
	Evidence []string `json:"evidence,omitempty" binding:"omitempty,max=10,dive,safe_url"`
}

// AdminResolveRequest is the request body for the final refund ruling.
type AdminResolveRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Amount   *int64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Note     string `json:"note,omitempty" binding:"max=1000"`
}

// TransactionListQuery holds the query parameters of a ledger listing.
type TransactionListQuery struct {
	Kind     string `form:"kind"`
	From     *int64 `form:"from" binding:"omitempty,min=0"`
	To       *int64 `form:"to" binding:"omitempty,min=0"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// WalletResponse is a wallet without its sealed payout destination.
type WalletResponse struct {
	ID                  string `json:"id"`
	OwnerID             string `json:"owner_id"`
	OwnerType           string `json:"owner_type"`
	Currency            string `json:"currency"`
	AvailableBalance    int64  `json:"available_balance"`
	ReservedBalance     int64  `json:"reserved_balance"`
	PayoutAccountLinked bool   `json:"payout_account_linked"`
	UpdatedAt           string `json:"updated_at"`
}

// NewWalletResponse maps a wallet to its API shape.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:                  w.ID.String(),
		OwnerID:             w.OwnerID.String(),
		OwnerType:           string(w.OwnerType),
		Currency:            w.Currency,
		AvailableBalance:    w.AvailableBalance,
		ReservedBalance:     w.ReservedBalance,
		PayoutAccountLinked: w.HasPayoutAccount(),
		UpdatedAt:           w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// IntakeResponse acknowledges a processor delivery.
type IntakeResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id"`
	Outcome   string `json:"outcome"`
	Duplicate bool   `json:"duplicate"`
}
