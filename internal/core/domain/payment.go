package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle of a buyer payment.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// SellerSettlement is one seller's share of a payment.
type SellerSettlement struct {
	SellerID uuid.UUID `json:"seller_id"`
	Gross    int64     `json:"gross"`
	Fee      int64     `json:"fee"`
	Net      int64     `json:"net"`
}

// Payment is a buyer payment for an order, linked to a processor checkout session.
type Payment struct {
	ID              uuid.UUID          `json:"id"`
	SessionID       string             `json:"session_id"`
	PaymentIntentID *string            `json:"payment_intent_id,omitempty"`
	BuyerID         uuid.UUID          `json:"buyer_id"`
	OrderID         uuid.UUID          `json:"order_id"`
	Amount          int64              `json:"amount"`
	Currency        string             `json:"currency"`
	Status          PaymentStatus      `json:"status"`
	RefundedAmount  int64              `json:"refunded_amount"`
	Breakdown       []SellerSettlement `json:"breakdown"`
	CapturedAt      *time.Time         `json:"captured_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// IsCaptured reports whether funds were collected for this payment.
func (p *Payment) IsCaptured() bool {
	switch p.Status {
	case PaymentStatusPaid, PaymentStatusPartiallyRefunded, PaymentStatusRefunded:
		return true
	}
	return false
}

// Refundable is the captured amount not yet returned to the buyer.
func (p *Payment) Refundable() int64 {
	if !p.IsCaptured() {
		return 0
	}
	return p.Amount - p.RefundedAmount
}

// SettlementFor returns sellerID's share, if the seller took part in the order.
func (p *Payment) SettlementFor(sellerID uuid.UUID) (SellerSettlement, bool) {
	for _, s := range p.Breakdown {
		if s.SellerID == sellerID {
			return s, true
		}
	}
	return SellerSettlement{}, false
}

// ApplyRefund records amount as returned and moves the status accordingly.
func (p *Payment) ApplyRefund(amount int64, now time.Time) {
	p.RefundedAmount += amount
	if p.RefundedAmount >= p.Amount {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
	p.UpdatedAt = now
}
