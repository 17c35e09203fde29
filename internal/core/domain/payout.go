package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus represents the lifecycle of a seller withdrawal.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusQueued    PayoutStatus = "queued"
	PayoutStatusInTransit PayoutStatus = "in_transit"
	PayoutStatusPaid      PayoutStatus = "paid"
	PayoutStatusFailed    PayoutStatus = "failed"
)

// Payout moves funds from a seller wallet to their external account.
type Payout struct {
	ID            uuid.UUID    `json:"id"`
	WalletID      uuid.UUID    `json:"wallet_id"`
	SellerID      uuid.UUID    `json:"seller_id"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	Status        PayoutStatus `json:"status"`
	TransferID    *string      `json:"transfer_id,omitempty"`
	FailureReason *string      `json:"failure_reason,omitempty"`
	Attempts      int          `json:"attempts"`
	RequestedAt   time.Time    `json:"requested_at"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsTerminal reports whether the payout can no longer change.
func (p *Payout) IsTerminal() bool {
	return p.Status == PayoutStatusPaid || p.Status == PayoutStatusFailed
}

// TransferToken is the idempotency key sent with the external transfer.
// It is stable for the payout so repeated attempts collapse into one transfer.
func (p *Payout) TransferToken() string {
	return "payout-" + p.ID.String()
}
