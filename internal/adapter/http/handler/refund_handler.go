package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RefundHandler handles the refund dispute endpoints.
type RefundHandler struct {
	refundSvc ports.RefundService
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(refundSvc ports.RefundService) *RefundHandler {
	return &RefundHandler{refundSvc: refundSvc}
}

// Request handles POST /api/v1/refunds. One refund is created per seller.
func (h *RefundHandler) Request(c *gin.Context) {
	buyerID, ok := actor(c)
	if !ok {
		return
	}
	var req dto.RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	items := make([]ports.RefundItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ports.RefundItemRequest{
			ProductID: uuid.MustParse(it.ProductID),
			Quantity:  it.Quantity,
		})
	}

	refunds, err := h.refundSvc.RequestRefund(c.Request.Context(), ports.RefundRequest{
		PaymentID:   uuid.MustParse(req.PaymentID),
		RequesterID: buyerID,
		Reason:      req.Reason,
		Items:       items,
		Evidence:    req.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(refunds) == 1 {
		c.Set(middleware.CtxResourceID, refunds[0].ID.String())
	}
	response.Created(c, refunds)
}

// Get handles GET /api/v1/refunds/:id. Only the buyer, the seller and
// admins may read a refund.
func (h *RefundHandler) Get(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	refundID, ok := pathID(c)
	if !ok {
		return
	}

	refund, err := h.refundSvc.GetRefund(c.Request.Context(), refundID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if c.GetString(middleware.CtxActorRole) != ports.RoleAdmin &&
		refund.RequesterID != actorID && refund.SellerID != actorID {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	response.OK(c, refund)
}

// Respond handles POST /api/v1/refunds/:id/respond.
func (h *RefundHandler) Respond(c *gin.Context) {
	sellerID, ok := actor(c)
	if !ok {
		return
	}
	refundID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.SellerRespondRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	refund, err := h.refundSvc.SellerRespond(c.Request.Context(), ports.SellerResponse{
		RefundID: refundID,
		SellerID: sellerID,
		Action:   domain.SellerAction(req.Action),
		Note:     req.Note,
		Evidence: req.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, refund)
}

// Resolve handles POST /api/v1/refunds/:id/resolve.
func (h *RefundHandler) Resolve(c *gin.Context) {
	adminID, ok := actor(c)
	if !ok {
		return
	}
	refundID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.AdminResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	refund, err := h.refundSvc.AdminResolve(c.Request.Context(), ports.AdminResolution{
		RefundID: refundID,
		AdminID:  adminID,
		Decision: domain.AdminDecision(req.Decision),
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, refund)
}
