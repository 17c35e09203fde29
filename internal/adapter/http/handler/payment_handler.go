package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles checkout and escrow release endpoints.
type PaymentHandler struct {
	settlement ports.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(settlement ports.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlement: settlement}
}

// Initiate handles POST /api/v1/payments.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	buyerID, ok := actor(c)
	if !ok {
		return
	}
	var req dto.InitiatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	payment, err := h.settlement.InitiatePayment(c.Request.Context(), ports.InitiatePaymentRequest{
		OrderID:   uuid.MustParse(req.OrderID),
		BuyerID:   buyerID,
		SessionID: req.SessionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, payment.ID.String())
	response.Created(c, payment)
}

// Release handles POST /api/v1/admin/payments/:id/release.
func (h *PaymentHandler) Release(c *gin.Context) {
	paymentID, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.settlement.ReleaseSettlement(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"payment_id": paymentID.String(),
		"released":   entries,
	})
}
