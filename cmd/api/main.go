package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketplace-ledger/config"
	httpHandler "marketplace-ledger/internal/adapter/http/handler"
	"marketplace-ledger/internal/adapter/processor"
	memStorage "marketplace-ledger/internal/adapter/storage/memory"
	pgStorage "marketplace-ledger/internal/adapter/storage/postgres"
	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// storage is the set of repositories selected by database.driver.
type storage struct {
	wallets    ports.WalletRepository
	txns       ports.TransactionRepository
	payments   ports.PaymentRepository
	payouts    ports.PayoutRepository
	refunds    ports.RefundRepository
	events     ports.EventLogRepository
	orders     ports.OrderRepository
	audits     ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Marketplace Ledger")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	// Redis is optional: without it every event goes through the event log
	// and rate limiting is off.
	var (
		eventCache  ports.ProcessedEventCache
		rateLimiter ports.RateLimiter
	)
	healthCheckers := store.health
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		eventCache = redisStorage.NewEventCache(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	stripe := processor.NewStripe(cfg.Processor, log)
	parser := processor.NewWebhookParser(cfg.Processor.WebhookSecret, cfg.Processor.WebhookTolerance)
	fees := domain.FeePolicy{Bps: cfg.Ledger.PlatformFeeBps}

	// Initialize business services
	settlementSvc := service.NewSettlementService(
		store.payments, store.refunds, store.orders, store.wallets, store.txns,
		store.transactor, fees, log,
	)
	intakeSvc := service.NewEventIntakeService(
		parser, store.events, eventCache, settlementSvc,
		cfg.Ledger.EventProcessingLease, cfg.Ledger.ProcessedEventTTL, log,
	)
	payoutSvc := service.NewPayoutService(
		store.payouts, store.wallets, store.txns, store.transactor, stripe, encSvc, log,
	)
	refundSvc := service.NewRefundService(
		store.refunds, store.payments, store.orders, store.wallets, store.txns,
		store.transactor, stripe, log,
	)
	walletSvc := service.NewWalletService(
		store.wallets, store.txns, store.transactor, stripe, encSvc, cfg.Ledger.DefaultCurrency, log,
	)
	auditSvc := service.NewAuditService(store.audits, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EventIntake:    intakeSvc,
		Settlement:     settlementSvc,
		Payouts:        payoutSvc,
		Refunds:        refundSvc,
		Wallets:        walletSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimiter,
		AuditSvc:       auditSvc,
		HealthCheckers: healthCheckers,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*storage, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &storage{
			wallets:    pgStorage.NewWalletRepo(pool),
			txns:       pgStorage.NewTransactionRepo(pool),
			payments:   pgStorage.NewPaymentRepo(pool),
			payouts:    pgStorage.NewPayoutRepo(pool),
			refunds:    pgStorage.NewRefundRepo(pool),
			events:     pgStorage.NewEventLogRepo(pool),
			orders:     pgStorage.NewOrderRepo(pool),
			audits:     pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool, cfg.LockTimeout),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:      pool.Close,
		}, nil
	case "memory":
		log.Warn().Msg("Using in-memory storage; state is lost on exit")
		s := memStorage.NewStore()
		return &storage{
			wallets:    memStorage.NewWalletRepo(s),
			txns:       memStorage.NewTransactionRepo(s),
			payments:   memStorage.NewPaymentRepo(s),
			payouts:    memStorage.NewPayoutRepo(s),
			refunds:    memStorage.NewRefundRepo(s),
			events:     memStorage.NewEventLogRepo(s),
			orders:     memStorage.NewOrderRepo(s),
			audits:     memStorage.NewAuditRepo(s),
			transactor: s,
			close:      func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
