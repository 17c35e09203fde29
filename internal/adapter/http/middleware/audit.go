package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-template" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/payments":                   {domain.AuditActionInitiatePayment, "payment"},
	"POST /api/v1/payouts":                    {domain.AuditActionPayoutRequest, "payout"},
	"POST /api/v1/payouts/:id/process":        {domain.AuditActionPayoutProcess, "payout"},
	"POST /api/v1/refunds":                    {domain.AuditActionRefundRequest, "refund"},
	"POST /api/v1/refunds/:id/respond":        {domain.AuditActionRefundRespond, "refund"},
	"POST /api/v1/refunds/:id/resolve":        {domain.AuditActionRefundResolve, "refund"},
	"POST /api/v1/admin/payments/:id/release": {domain.AuditActionRelease, "payment"},
	"PUT /api/v1/wallets/me/payout-account":   {domain.AuditActionLinkAccount, "wallet"},
	"POST /api/v1/webhooks/processor":         {domain.AuditActionProcessorEvent, "event"},
}

// AuditLog creates an audit middleware that records successful write operations.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		resourceID := c.GetString(CtxResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}

		var actorID *uuid.UUID
		if id, ok := ActorID(c); ok {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			ActorRole:    c.GetString(CtxActorRole),
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
