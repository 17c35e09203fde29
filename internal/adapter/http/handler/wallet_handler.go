package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	ownerID, ok := actor(c)
	if !ok {
		return
	}

	w, err := h.walletSvc.GetWallet(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(w))
}

// ListTransactions handles GET /api/v1/wallets/me/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	ownerID, ok := actor(c)
	if !ok {
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		From:     q.From,
		To:       q.To,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Kind != "" {
		kind := domain.TransactionKind(q.Kind)
		params.Kind = &kind
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), ownerID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = len(txns)
	}
	response.Paged(c, txns, response.PageMeta{Page: page, PageSize: size, Total: total})
}

// LinkPayoutAccount handles PUT /api/v1/wallets/me/payout-account.
func (h *WalletHandler) LinkPayoutAccount(c *gin.Context) {
	ownerID, ok := actor(c)
	if !ok {
		return
	}
	var req dto.LinkPayoutAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.walletSvc.LinkPayoutAccount(c.Request.Context(), ownerID, req.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(w))
}

// Reconcile handles GET /api/v1/admin/wallets/:id/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	walletID, ok := pathID(c)
	if !ok {
		return
	}

	report, err := h.walletSvc.Reconcile(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, report)
}
