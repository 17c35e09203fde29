package handler

import (
	"strings"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PayoutHandler handles seller withdrawal endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// Request handles POST /api/v1/payouts.
func (h *PayoutHandler) Request(c *gin.Context) {
	sellerID, ok := actor(c)
	if !ok {
		return
	}
	var req dto.PayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	payout, err := h.payoutSvc.RequestPayout(c.Request.Context(), ports.PayoutRequest{
		SellerID: sellerID,
		Amount:   req.Amount,
		Currency: strings.ToLower(req.Currency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, payout.ID.String())
	response.Created(c, payout)
}

// Process handles POST /api/v1/payouts/:id/process.
func (h *PayoutHandler) Process(c *gin.Context) {
	payoutID, ok := pathID(c)
	if !ok {
		return
	}

	payout, err := h.payoutSvc.ProcessPayout(c.Request.Context(), payoutID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, payout)
}
