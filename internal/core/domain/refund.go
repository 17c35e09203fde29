package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the dispute lifecycle of a refund request.
type RefundStatus string

const (
	RefundStatusRequested       RefundStatus = "requested"
	RefundStatusUnderReview     RefundStatus = "under_review"
	RefundStatusApproved        RefundStatus = "approved"
	RefundStatusRejected        RefundStatus = "rejected"
	RefundStatusRefundedPartial RefundStatus = "refunded_partial"
	RefundStatusRefundedFull    RefundStatus = "refunded_full"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusRequested:   {RefundStatusUnderReview, RefundStatusApproved, RefundStatusRejected},
	RefundStatusUnderReview: {RefundStatusApproved, RefundStatusRejected},
	RefundStatusApproved:    {RefundStatusRefundedPartial, RefundStatusRefundedFull},
}

// SellerAction is a seller's response to a refund request.
type SellerAction string

const (
	SellerActionProvideProof SellerAction = "provide_proof"
	SellerActionAccept       SellerAction = "accept"
	SellerActionReject       SellerAction = "reject"
)

// AdminDecision is the final ruling on a refund.
type AdminDecision string

const (
	AdminDecisionApprove AdminDecision = "approve"
	AdminDecisionReject  AdminDecision = "reject"
)

// RefundItem is a claimed product line with its apportioned shipping and tax.
type RefundItem struct {
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int64     `json:"quantity"`
	Amount          int64     `json:"amount"`
	ShippingPortion int64     `json:"shipping_portion"`
	TaxPortion      int64     `json:"tax_portion"`
}

// Total is the refundable value of the line.
func (i RefundItem) Total() int64 {
	return i.Amount + i.ShippingPortion + i.TaxPortion
}

// Evidence is a reference attached by a buyer or seller.
type Evidence struct {
	URL     string    `json:"url"`
	Note    string    `json:"note,omitempty"`
	AddedBy uuid.UUID `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Refund is a buyer claim against one seller's part of a payment.
type Refund struct {
	ID                uuid.UUID    `json:"id"`
	PaymentID         uuid.UUID    `json:"payment_id"`
	OrderID           uuid.UUID    `json:"order_id"`
	RequesterID       uuid.UUID    `json:"requester_id"`
	SellerID          uuid.UUID    `json:"seller_id"`
	Items             []RefundItem `json:"items,omitempty"`
	ClaimedAmount     int64        `json:"claimed_amount"`
	ResolvedAmount    int64        `json:"resolved_amount"`
	Currency          string       `json:"currency"`
	Status            RefundStatus `json:"status"`
	Reason            string       `json:"reason"`
	Evidence          []Evidence   `json:"evidence,omitempty"`
	SellerNote        *string      `json:"seller_note,omitempty"`
	AdminNote         *string      `json:"admin_note,omitempty"`
	ProcessorRefundID *string      `json:"processor_refund_id,omitempty"`
	ClawbackRequired  bool         `json:"clawback_required"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
}

// IsTerminal reports whether the refund has been settled or rejected.
func (r *Refund) IsTerminal() bool {
	switch r.Status {
	case RefundStatusRejected, RefundStatusRefundedPartial, RefundStatusRefundedFull:
		return true
	}
	return false
}

// CanTransition reports whether moving to status `to` is allowed.
func (r *Refund) CanTransition(to RefundStatus) bool {
	for _, s := range refundTransitions[r.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the refund to status `to` or reports why it cannot.
func (r *Refund) TransitionTo(to RefundStatus, now time.Time) error {
	if !r.CanTransition(to) {
		return fmt.Errorf("refund %s: %s -> %s not allowed", r.ID, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now
	if r.IsTerminal() {
		r.ResolvedAt = &now
	}
	return nil
}

// RefundToken is the idempotency key sent with the external refund.
func (r *Refund) RefundToken() string {
	return "refund-" + r.ID.String()
}
