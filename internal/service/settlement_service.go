package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	payments   ports.PaymentRepository
	refunds    ports.RefundRepository
	orders     ports.OrderRepository
	ledger     ledger
	transactor ports.DBTransactor
	fees       domain.FeePolicy
	log        zerolog.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	payments ports.PaymentRepository,
	refunds ports.RefundRepository,
	orders ports.OrderRepository,
	wallets ports.WalletRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	fees domain.FeePolicy,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		payments:   payments,
		refunds:    refunds,
		orders:     orders,
		ledger:     ledger{wallets: wallets, txns: txns},
		transactor: transactor,
		fees:       fees,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// InitiatePayment records a pending payment for a checkout session.
func (s *SettlementServiceImpl) InitiatePayment(ctx context.Context, req ports.InitiatePaymentRequest) (*domain.Payment, error) {
	if req.SessionID == "" {
		return nil, apperror.Validation("session_id is required")
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.BuyerID != req.BuyerID {
		return nil, apperror.ErrForbidden()
	}
	if order.Status != domain.OrderStatusPending {
		return nil, apperror.ErrInvalidTransition("order", string(order.Status), "checkout")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.createPayment(ctx, dbTx, order, req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("order_id", order.ID.String()).
		Int64("amount", payment.Amount).
		Int("sellers", len(payment.Breakdown)).
		Msg("payment initiated")

	return payment, nil
}

func (s *SettlementServiceImpl) createPayment(ctx context.Context, tx pgx.Tx, order *domain.Order, sessionID string) (*domain.Payment, error) {
	now := s.now()
	payment := &domain.Payment{
		ID:        uuid.New(),
		SessionID: sessionID,
		BuyerID:   order.BuyerID,
		OrderID:   order.ID,
		Amount:    order.Total(),
		Currency:  order.Currency,
		Status:    domain.PaymentStatusPending,
		Breakdown: s.fees.Breakdown(order),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if payment.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := s.payments.Create(ctx, tx, payment); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrAlreadyProcessed("checkout session")
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}
	return payment, nil
}

// SettleCheckout captures a completed checkout and holds each seller's net
// share in their reserved balance. Replays of the same checkout converge:
// an already paid payment is returned untouched.
func (s *SettlementServiceImpl) SettleCheckout(ctx context.Context, ev domain.CheckoutCompleted) (*domain.Payment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.payments.GetBySessionForUpdate(ctx, dbTx, ev.SessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		// Late notification for an order checked out before a payment row existed.
		payment, err = s.materialize(ctx, dbTx, ev.OrderRef, ev.SessionID)
		if err != nil {
			return nil, err
		}
	}

	if payment.IsCaptured() {
		s.log.Info().Str("payment_id", payment.ID.String()).Msg("checkout already settled")
		return payment, nil
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, apperror.ErrInvalidTransition("payment", string(payment.Status), string(domain.PaymentStatusPaid))
	}
	if ev.Currency != "" && !sameCurrency(ev.Currency, payment.Currency) {
		return nil, apperror.ErrCurrencyMismatch(payment.Currency, ev.Currency)
	}
	if ev.AmountTotal != 0 && ev.AmountTotal != payment.Amount {
		s.log.Warn().
			Str("payment_id", payment.ID.String()).
			Int64("expected", payment.Amount).
			Int64("captured", ev.AmountTotal).
			Msg("captured amount differs from payment amount")
	}

	now := s.now()
	payment.Status = domain.PaymentStatusPaid
	payment.CapturedAt = &now
	payment.UpdatedAt = now
	if ev.PaymentIntentID != "" {
		payment.PaymentIntentID = strRef(ev.PaymentIntentID)
	}
	if err := s.payments.Update(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}

	if err := s.orders.SetOrderStatus(ctx, dbTx, payment.OrderID, domain.OrderStatusProcessing); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set order status: %w", err))
	}

	for _, share := range payment.Breakdown {
		if share.Net <= 0 {
			continue
		}
		if err := s.hold(ctx, dbTx, payment, share, now); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("session_id", payment.SessionID).
		Int64("amount", payment.Amount).
		Msg("checkout settled")

	return payment, nil
}

func (s *SettlementServiceImpl) hold(ctx context.Context, tx pgx.Tx, payment *domain.Payment, share domain.SellerSettlement, now time.Time) error {
	wallet, err := s.ledger.walletFor(ctx, tx, share.SellerID, domain.OwnerTypeSeller, payment.Currency, now)
	if err != nil {
		return err
	}
	if !sameCurrency(wallet.Currency, payment.Currency) {
		return apperror.ErrCurrencyMismatch(wallet.Currency, payment.Currency)
	}

	held, err := s.ledger.txns.ExistsForPayment(ctx, tx, wallet.ID, payment.ID, domain.KindHold)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check hold: %w", err))
	}
	if held {
		return nil
	}

	_, err = s.ledger.post(ctx, tx, wallet, domain.KindHold, domain.BalanceReserved, share.Net, entryRefs{
		OrderID:     uuidRef(payment.OrderID),
		PaymentID:   uuidRef(payment.ID),
		Description: "sale proceeds held in escrow",
	}, now)
	return err
}

func (s *SettlementServiceImpl) materialize(ctx context.Context, tx pgx.Tx, orderRef, sessionID string) (*domain.Payment, error) {
	orderID, err := uuid.Parse(orderRef)
	if err != nil {
		return nil, apperror.ErrNotFound("payment")
	}
	order, err := s.orders.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("session_id", sessionID).
		Msg("materializing payment from order metadata")
	return s.createPayment(ctx, tx, order, sessionID)
}

// FailPayment marks a pending payment failed, cancels its order and returns
// the order's items to stock. A payment that cannot be resolved, or is no
// longer pending, is left alone.
func (s *SettlementServiceImpl) FailPayment(ctx context.Context, req ports.PaymentFailure) (*domain.Payment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.resolveFailed(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		s.log.Info().
			Str("session_id", req.SessionID).
			Str("payment_intent", req.PaymentIntentID).
			Str("order_ref", req.OrderRef).
			Msg("no payment for failure notification, nothing to roll back")
		return nil, nil
	}
	if payment.Status != domain.PaymentStatusPending {
		return payment, nil
	}

	now := s.now()
	payment.Status = domain.PaymentStatusFailed
	payment.UpdatedAt = now
	if req.PaymentIntentID != "" && payment.PaymentIntentID == nil {
		payment.PaymentIntentID = strRef(req.PaymentIntentID)
	}
	if err := s.payments.Update(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}

	order, err := s.orders.GetOrderForUpdate(ctx, dbTx, payment.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order != nil && order.Status != domain.OrderStatusCanceled {
		if err := s.orders.SetOrderStatus(ctx, dbTx, order.ID, domain.OrderStatusCanceled); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("cancel order: %w", err))
		}
		for _, item := range order.Items {
			if err := s.orders.RestoreStock(ctx, dbTx, item.ProductID, item.Quantity); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("restore stock: %w", err))
			}
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("reason", req.Reason).
		Msg("payment failed, order canceled")

	return payment, nil
}

// resolveFailed tries the session, then the payment intent, then the order.
func (s *SettlementServiceImpl) resolveFailed(ctx context.Context, tx pgx.Tx, req ports.PaymentFailure) (*domain.Payment, error) {
	if req.SessionID != "" {
		p, err := s.payments.GetBySessionForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock payment by session: %w", err))
		}
		if p != nil {
			return p, nil
		}
	}
	if req.PaymentIntentID != "" {
		p, err := s.payments.GetByIntentForUpdate(ctx, tx, req.PaymentIntentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock payment by intent: %w", err))
		}
		if p != nil {
			return p, nil
		}
	}
	if orderID, err := uuid.Parse(req.OrderRef); err == nil {
		p, err := s.payments.GetLatestByOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock payment by order: %w", err))
		}
		return p, nil
	}
	return nil, nil
}

// ReleaseSettlement makes each seller's share of a captured payment
// spendable. Shares already refunded are not released, and a payment with
// an open refund claim cannot be released.
func (s *SettlementServiceImpl) ReleaseSettlement(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.payments.GetByIDForUpdate(ctx, dbTx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if !payment.IsCaptured() {
		return nil, apperror.ErrInvalidTransition("payment", string(payment.Status), "released")
	}

	// Refund claims lock the payment too, so none can be filed between
	// this read and the commit.
	refunds, err := s.refunds.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list refunds: %w", err))
	}
	refunded := map[uuid.UUID]int64{}
	for _, r := range refunds {
		if !r.IsTerminal() {
			return nil, apperror.ErrInvalidTransition("payment", "disputed", "released")
		}
		if r.Status != domain.RefundStatusRejected {
			refunded[r.SellerID] += r.ResolvedAmount
		}
	}

	now := s.now()
	var entries []domain.Transaction
	for _, share := range payment.Breakdown {
		amount := share.Net - refunded[share.SellerID]
		if amount <= 0 {
			continue
		}
		wallet, err := s.ledger.wallets.GetByOwnerForUpdate(ctx, dbTx, share.SellerID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		released, err := s.ledger.txns.ExistsForPayment(ctx, dbTx, wallet.ID, payment.ID, domain.KindRelease)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check release: %w", err))
		}
		if released {
			continue
		}
		entry, err := s.ledger.post(ctx, dbTx, wallet, domain.KindRelease, domain.BalanceAvailable, amount, entryRefs{
			OrderID:     uuidRef(payment.OrderID),
			PaymentID:   uuidRef(payment.ID),
			Description: "escrow released",
		}, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Int("entries", len(entries)).
		Msg("settlement released")

	return entries, nil
}
