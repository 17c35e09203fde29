package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_RecordsRouteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	adminID := uuid.New()
	payoutID := uuid.New().String()
	done := make(chan *domain.AuditLog, 1)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) { done <- log },
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/payouts/:id/process", func(c *gin.Context) {
		c.Set(CtxActorID, adminID)
		c.Set(CtxActorRole, ports.RoleAdmin)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payouts/"+payoutID+"/process", nil))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case log := <-done:
		assert.Equal(t, domain.AuditActionPayoutProcess, log.Action)
		assert.Equal(t, "payout", log.ResourceType)
		assert.Equal(t, payoutID, log.ResourceID)
		require.NotNil(t, log.ActorID)
		assert.Equal(t, adminID, *log.ActorID)
		assert.Equal(t, ports.RoleAdmin, log.ActorRole)
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_UsesCreatedResourceID(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	refundID := uuid.New().String()
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionRefundRequest, log.Action)
			assert.Equal(t, refundID, log.ResourceID)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/refunds", func(c *gin.Context) {
		c.Set(CtxResourceID, refundID)
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/refunds", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_Skips(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: reads, failures and unmapped routes are not audited.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/wallets/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/payouts", func(c *gin.Context) { c.Status(http.StatusPaymentRequired) })
	r.POST("/api/v1/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/payouts", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/other", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestAuditRoutes_KnownActions(t *testing.T) {
	seen := map[domain.AuditAction]bool{}
	for key, route := range auditRoutes {
		assert.NotEmpty(t, route.resourceType, key)
		assert.False(t, seen[route.action], "action %s mapped twice", route.action)
		seen[route.action] = true
	}
	assert.Len(t, seen, 9)
}
