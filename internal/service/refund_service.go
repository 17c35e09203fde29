package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundServiceImpl implements ports.RefundService.
type RefundServiceImpl struct {
	refunds    ports.RefundRepository
	payments   ports.PaymentRepository
	orders     ports.OrderRepository
	ledger     ledger
	transactor ports.DBTransactor
	processor  ports.PaymentProcessor
	log        zerolog.Logger
	now        func() time.Time
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(
	refunds ports.RefundRepository,
	payments ports.PaymentRepository,
	orders ports.OrderRepository,
	wallets ports.WalletRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	processor ports.PaymentProcessor,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		refunds:    refunds,
		payments:   payments,
		orders:     orders,
		ledger:     ledger{wallets: wallets, txns: txns},
		transactor: transactor,
		processor:  processor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetRefund fetches a refund by id.
func (s *RefundServiceImpl) GetRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	r, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get refund: %w", err))
	}
	if r == nil {
		return nil, apperror.ErrNotFound("refund")
	}
	return r, nil
}

// RequestRefund opens one refund per seller whose items are claimed. With
// no items, every seller's full share of the payment is claimed.
func (s *RefundServiceImpl) RequestRefund(ctx context.Context, req ports.RefundRequest) ([]domain.Refund, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperror.Validation("reason is required")
	}
	if len(req.Items) > 0 && len(req.Evidence) == 0 {
		return nil, apperror.ErrEvidenceRequired()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The payment lock serializes claims on one payment, so the open-claims
	// cap below sees every committed claim.
	payment, err := s.payments.GetByIDForUpdate(ctx, dbTx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if payment.BuyerID != req.RequesterID {
		return nil, apperror.ErrForbidden()
	}
	if !payment.IsCaptured() {
		return nil, apperror.ErrInvalidRefund("Payment has not been captured")
	}

	order, err := s.orders.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	claims, err := s.claims(payment, order, req.Items)
	if err != nil {
		return nil, err
	}

	existing, err := s.refunds.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list refunds: %w", err))
	}
	var open, total int64
	for _, r := range existing {
		if !r.IsTerminal() {
			open += r.ClaimedAmount
		}
	}
	for _, c := range claims {
		total += c.amount
	}
	if total <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if total+open > payment.Refundable() {
		return nil, apperror.ErrRefundAmountExceedsCaptured()
	}

	now := s.now()
	evidence := make([]domain.Evidence, 0, len(req.Evidence))
	for _, url := range req.Evidence {
		evidence = append(evidence, domain.Evidence{URL: url, AddedBy: req.RequesterID, AddedAt: now})
	}

	out := make([]domain.Refund, 0, len(claims))
	for _, c := range claims {
		r := domain.Refund{
			ID:            uuid.New(),
			PaymentID:     payment.ID,
			OrderID:       order.ID,
			RequesterID:   req.RequesterID,
			SellerID:      c.sellerID,
			Items:         c.items,
			ClaimedAmount: c.amount,
			Currency:      payment.Currency,
			Status:        domain.RefundStatusRequested,
			Reason:        req.Reason,
			Evidence:      append([]domain.Evidence(nil), evidence...),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.refunds.Create(ctx, dbTx, &r); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
		}
		out = append(out, r)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Int("refunds", len(out)).
		Int64("claimed", total).
		Msg("refund requested")

	return out, nil
}

type sellerClaim struct {
	sellerID uuid.UUID
	items    []domain.RefundItem
	amount   int64
}

// claims groups the requested items by seller, in breakdown order.
func (s *RefundServiceImpl) claims(payment *domain.Payment, order *domain.Order, items []ports.RefundItemRequest) ([]sellerClaim, error) {
	if len(items) == 0 {
		out := make([]sellerClaim, 0, len(payment.Breakdown))
		for _, share := range payment.Breakdown {
			if share.Gross > 0 {
				out = append(out, sellerClaim{sellerID: share.SellerID, amount: share.Gross})
			}
		}
		return out, nil
	}

	subtotal := order.Subtotal()
	bySeller := map[uuid.UUID]*sellerClaim{}
	seen := map[uuid.UUID]bool{}
	for _, it := range items {
		if seen[it.ProductID] {
			return nil, apperror.Validation(fmt.Sprintf("product %s listed twice", it.ProductID))
		}
		seen[it.ProductID] = true

		line, ok := order.Item(it.ProductID)
		if !ok {
			return nil, apperror.Validation(fmt.Sprintf("product %s is not part of the order", it.ProductID))
		}
		if it.Quantity <= 0 || it.Quantity > line.Quantity {
			return nil, apperror.Validation(fmt.Sprintf("quantity for product %s must be between 1 and %d", it.ProductID, line.Quantity))
		}

		amount := line.UnitPrice * it.Quantity
		item := domain.RefundItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			Amount:          amount,
			ShippingPortion: domain.ProportionalShare(order.ShippingAmount, amount, subtotal),
			TaxPortion:      domain.ProportionalShare(order.TaxAmount, amount, subtotal),
		}
		c, ok := bySeller[line.SellerID]
		if !ok {
			c = &sellerClaim{sellerID: line.SellerID}
			bySeller[line.SellerID] = c
		}
		c.items = append(c.items, item)
		c.amount += item.Total()
	}

	out := make([]sellerClaim, 0, len(bySeller))
	for _, share := range payment.Breakdown {
		if c, ok := bySeller[share.SellerID]; ok {
			out = append(out, *c)
			delete(bySeller, share.SellerID)
		}
	}
	if len(bySeller) > 0 {
		return nil, apperror.InternalError(fmt.Errorf("payment %s breakdown is missing order sellers", payment.ID))
	}
	return out, nil
}

// SellerRespond applies the responsible seller's action to a refund.
func (s *RefundServiceImpl) SellerRespond(ctx context.Context, req ports.SellerResponse) (*domain.Refund, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	refund, err := s.refunds.GetByIDForUpdate(ctx, dbTx, req.RefundID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock refund: %w", err))
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}
	if refund.SellerID != req.SellerID {
		return nil, apperror.ErrForbidden()
	}

	now := s.now()
	switch req.Action {
	case domain.SellerActionProvideProof:
		if len(req.Evidence) == 0 {
			return nil, apperror.ErrEvidenceRequired()
		}
		if refund.Status != domain.RefundStatusUnderReview {
			if err := s.transition(refund, domain.RefundStatusUnderReview, now); err != nil {
				return nil, err
			}
		}
		for _, url := range req.Evidence {
			refund.Evidence = append(refund.Evidence, domain.Evidence{
				URL: url, Note: req.Note, AddedBy: req.SellerID, AddedAt: now,
			})
		}
	case domain.SellerActionAccept:
		if err := s.transition(refund, domain.RefundStatusApproved, now); err != nil {
			return nil, err
		}
	case domain.SellerActionReject:
		if err := s.transition(refund, domain.RefundStatusRejected, now); err != nil {
			return nil, err
		}
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown action %q", req.Action))
	}
	if req.Note != "" {
		refund.SellerNote = strRef(req.Note)
	}
	refund.UpdatedAt = now

	if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update refund: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("action", string(req.Action)).
		Str("status", string(refund.Status)).
		Msg("seller responded to refund")

	return refund, nil
}

// AdminResolve rules on a refund. Approval runs in three steps so that a
// failure at any point can be resumed by calling it again:
//  1. fix the amount and move to approved, or flag a clawback when the
//     seller's reserved balance cannot cover it;
//  2. issue the processor refund and record its id;
//  3. debit the reserved balance and mark the refund settled.
//
// The recorded processor refund id tells a rerun that step 2 already happened.
func (s *RefundServiceImpl) AdminResolve(ctx context.Context, req ports.AdminResolution) (*domain.Refund, error) {
	switch req.Decision {
	case domain.AdminDecisionReject:
		return s.reject(ctx, req)
	case domain.AdminDecisionApprove:
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown decision %q", req.Decision))
	}

	refund, payment, err := s.approve(ctx, req)
	if err != nil {
		return nil, err
	}

	if refund.ProcessorRefundID == nil {
		if payment.PaymentIntentID == nil {
			return nil, apperror.ErrInvalidRefund("Payment has no processor reference")
		}
		processorID, err := s.processor.CreateRefund(ctx, ports.ProcessorRefundRequest{
			PaymentIntentID: *payment.PaymentIntentID,
			Amount:          refund.ResolvedAmount,
			IdempotencyKey:  refund.RefundToken(),
			Metadata: map[string]string{
				"refund_id": refund.ID.String(),
				"seller_id": refund.SellerID.String(),
			},
		})
		if err != nil {
			s.log.Warn().Err(err).Str("refund_id", refund.ID.String()).Msg("processor refund failed")
			return nil, apperror.ErrProcessor(err)
		}
		if err := s.recordProcessorRefund(ctx, refund.ID, processorID); err != nil {
			// Step 3 still runs; a rerun would get the same id back from the processor.
			s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Str("processor_refund_id", processorID).
				Msg("failed to record processor refund id")
		}
		refund.ProcessorRefundID = strRef(processorID)
	}

	return s.settle(ctx, refund.ID, *refund.ProcessorRefundID)
}

func (s *RefundServiceImpl) reject(ctx context.Context, req ports.AdminResolution) (*domain.Refund, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	refund, err := s.refunds.GetByIDForUpdate(ctx, dbTx, req.RefundID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock refund: %w", err))
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}

	now := s.now()
	if err := s.transition(refund, domain.RefundStatusRejected, now); err != nil {
		return nil, err
	}
	if req.Note != "" {
		refund.AdminNote = strRef(req.Note)
	}
	if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update refund: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("refund_id", refund.ID.String()).Msg("refund rejected")
	return refund, nil
}

// approve is step 1 of AdminResolve.
func (s *RefundServiceImpl) approve(ctx context.Context, req ports.AdminResolution) (*domain.Refund, *domain.Payment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	refund, err := s.refunds.GetByIDForUpdate(ctx, dbTx, req.RefundID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock refund: %w", err))
	}
	if refund == nil {
		return nil, nil, apperror.ErrNotFound("refund")
	}
	if refund.IsTerminal() {
		return nil, nil, apperror.ErrAlreadyProcessed("refund")
	}

	payment, err := s.payments.GetByIDForUpdate(ctx, dbTx, refund.PaymentID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, nil, apperror.ErrNotFound("payment")
	}

	// Once the processor refund exists its amount is fixed.
	if refund.ProcessorRefundID != nil {
		return refund, payment, nil
	}

	amount := refund.ClaimedAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return nil, nil, apperror.ErrInvalidAmount()
	}
	if amount > refund.ClaimedAmount {
		return nil, nil, apperror.Validation("Refund amount exceeds claimed amount")
	}
	inFlight, err := s.inFlight(ctx, payment.ID, refund.ID)
	if err != nil {
		return nil, nil, err
	}
	if amount+inFlight > payment.Refundable() {
		return nil, nil, apperror.ErrRefundAmountExceedsCaptured()
	}

	now := s.now()
	if refund.Status != domain.RefundStatusApproved {
		if err := s.transition(refund, domain.RefundStatusApproved, now); err != nil {
			return nil, nil, err
		}
	}
	refund.ResolvedAmount = amount
	if req.Note != "" {
		refund.AdminNote = strRef(req.Note)
	}

	wallet, err := s.ledger.wallets.GetByOwnerForUpdate(ctx, dbTx, refund.SellerID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	refund.ClawbackRequired = wallet == nil || wallet.ReservedBalance < amount
	refund.UpdatedAt = now

	if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("update refund: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if refund.ClawbackRequired {
		s.log.Warn().
			Str("refund_id", refund.ID.String()).
			Str("seller_id", refund.SellerID.String()).
			Int64("amount", amount).
			Msg("reserved balance cannot cover refund, flagged for clawback")
		return nil, nil, apperror.ErrClawbackRequired()
	}
	return refund, payment, nil
}

// inFlight sums the amounts of other approved refunds on the payment that
// have not settled yet. Callers hold the payment lock.
func (s *RefundServiceImpl) inFlight(ctx context.Context, paymentID, exclude uuid.UUID) (int64, error) {
	refunds, err := s.refunds.ListByPayment(ctx, paymentID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list refunds: %w", err))
	}
	var sum int64
	for _, r := range refunds {
		if r.ID != exclude && r.Status == domain.RefundStatusApproved {
			sum += r.ResolvedAmount
		}
	}
	return sum, nil
}

// recordProcessorRefund is step 2's write-ahead of the processor refund id.
func (s *RefundServiceImpl) recordProcessorRefund(ctx context.Context, refundID uuid.UUID, processorID string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	refund, err := s.refunds.GetByIDForUpdate(ctx, dbTx, refundID)
	if err != nil {
		return fmt.Errorf("lock refund: %w", err)
	}
	if refund == nil {
		return fmt.Errorf("refund %s not found", refundID)
	}
	refund.ProcessorRefundID = strRef(processorID)
	refund.UpdatedAt = s.now()
	if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	return dbTx.Commit(ctx)
}

// settle is step 3 of AdminResolve.
func (s *RefundServiceImpl) settle(ctx context.Context, refundID uuid.UUID, processorID string) (*domain.Refund, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	refund, err := s.refunds.GetByIDForUpdate(ctx, dbTx, refundID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock refund: %w", err))
	}
	if refund == nil {
		return nil, apperror.ErrNotFound("refund")
	}
	if refund.IsTerminal() {
		return refund, nil
	}

	payment, err := s.payments.GetByIDForUpdate(ctx, dbTx, refund.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if refund.ResolvedAmount > payment.Refundable() {
		return nil, apperror.ErrRefundAmountExceedsCaptured()
	}

	wallet, err := s.ledger.wallets.GetByOwnerForUpdate(ctx, dbTx, refund.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	now := s.now()
	if wallet == nil || wallet.ReservedBalance < refund.ResolvedAmount {
		// The buyer already has the money back; keep the processor id and
		// leave the debit to an operator.
		refund.ClawbackRequired = true
		refund.ProcessorRefundID = strRef(processorID)
		refund.UpdatedAt = now
		if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update refund: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		s.log.Error().
			Str("refund_id", refund.ID.String()).
			Str("processor_refund_id", processorID).
			Msg("buyer refunded but reserved balance is short, flagged for clawback")
		return nil, apperror.ErrClawbackRequired()
	}

	if _, err := s.ledger.post(ctx, dbTx, wallet, domain.KindRefund, domain.BalanceReserved, refund.ResolvedAmount, entryRefs{
		OrderID:     uuidRef(refund.OrderID),
		PaymentID:   uuidRef(refund.PaymentID),
		RefundID:    uuidRef(refund.ID),
		Description: "refund to buyer",
	}, now); err != nil {
		return nil, err
	}

	payment.ApplyRefund(refund.ResolvedAmount, now)
	if err := s.payments.Update(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}

	final := domain.RefundStatusRefundedPartial
	if refund.ResolvedAmount >= refund.ClaimedAmount {
		final = domain.RefundStatusRefundedFull
	}
	if err := s.transition(refund, final, now); err != nil {
		return nil, err
	}
	refund.ProcessorRefundID = strRef(processorID)
	refund.ClawbackRequired = false
	if err := s.refunds.Update(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update refund: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("processor_refund_id", processorID).
		Str("status", string(refund.Status)).
		Int64("amount", refund.ResolvedAmount).
		Msg("refund settled")

	return refund, nil
}

func (s *RefundServiceImpl) transition(r *domain.Refund, to domain.RefundStatus, now time.Time) error {
	from := r.Status
	if err := r.TransitionTo(to, now); err != nil {
		return apperror.ErrInvalidTransition("refund", string(from), string(to))
	}
	return nil
}
