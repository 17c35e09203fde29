package handler

import (
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EventIntake    ports.EventIntakeService
	Settlement     ports.SettlementService
	Payouts        ports.PayoutService
	Refunds        ports.RefundService
	Wallets        ports.WalletService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter  // nil = rate limiting disabled
	AuditSvc       ports.AuditService // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	Mode           string // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// Processor notifications authenticate by payload signature.
	webhookHandler := NewWebhookHandler(deps.EventIntake, deps.Logger)
	v1.POST("/webhooks/processor", rl("webhooks"), webhookHandler.Receive)

	authed := v1.Group("", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	sellers := middleware.RequireRole(ports.RoleSeller, ports.RoleProvider)
	buyers := middleware.RequireRole(ports.RoleCustomer, ports.RoleProvider)
	admins := middleware.RequireRole(ports.RoleAdmin)

	paymentHandler := NewPaymentHandler(deps.Settlement)
	authed.POST("/payments", buyers, rl("payments"), paymentHandler.Initiate)

	walletHandler := NewWalletHandler(deps.Wallets)
	wallets := authed.Group("/wallets/me", sellers, rl("wallets"))
	{
		wallets.GET("", walletHandler.GetWallet)
		wallets.GET("/transactions", walletHandler.ListTransactions)
		wallets.PUT("/payout-account", walletHandler.LinkPayoutAccount)
	}

	payoutHandler := NewPayoutHandler(deps.Payouts)
	payouts := authed.Group("/payouts")
	{
		payouts.POST("", sellers, rl("payouts"), payoutHandler.Request)
		payouts.POST("/:id/process", admins, rl("admin"), payoutHandler.Process)
	}

	refundHandler := NewRefundHandler(deps.Refunds)
	refunds := authed.Group("/refunds")
	{
		refunds.POST("", buyers, rl("refunds"), refundHandler.Request)
		refunds.GET("/:id", rl("refunds"), refundHandler.Get)
		refunds.POST("/:id/respond", sellers, rl("refunds"), refundHandler.Respond)
		refunds.POST("/:id/resolve", admins, rl("admin"), refundHandler.Resolve)
	}

	admin := authed.Group("/admin", admins, rl("admin"))
	{
		admin.POST("/payments/:id/release", paymentHandler.Release)
		admin.GET("/wallets/:id/reconcile", walletHandler.Reconcile)
	}

	return r
}
