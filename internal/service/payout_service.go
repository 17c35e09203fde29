package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	payouts    ports.PayoutRepository
	ledger     ledger
	transactor ports.DBTransactor
	processor  ports.PaymentProcessor
	encSvc     ports.EncryptionService
	log        zerolog.Logger
	now        func() time.Time
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payouts ports.PayoutRepository,
	wallets ports.WalletRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	processor ports.PaymentProcessor,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payouts:    payouts,
		ledger:     ledger{wallets: wallets, txns: txns},
		transactor: transactor,
		processor:  processor,
		encSvc:     encSvc,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestPayout queues a withdrawal and takes the amount out of the
// seller's available balance in the same unit of work, so two concurrent
// requests cannot both spend the same funds.
func (s *PayoutServiceImpl) RequestPayout(ctx context.Context, req ports.PayoutRequest) (*domain.Payout, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.ledger.wallets.GetByOwnerForUpdate(ctx, dbTx, req.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if req.Currency != "" && !sameCurrency(req.Currency, wallet.Currency) {
		return nil, apperror.ErrCurrencyMismatch(wallet.Currency, req.Currency)
	}
	if !wallet.HasPayoutAccount() {
		return nil, apperror.ErrPayoutAccountMissing()
	}
	if wallet.AvailableBalance < req.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	payout := &domain.Payout{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		Currency:    wallet.Currency,
		Status:      domain.PayoutStatusQueued,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := s.payouts.Create(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}

	if _, err := s.ledger.post(ctx, dbTx, wallet, domain.KindPayout, domain.BalanceAvailable, req.Amount, entryRefs{
		PayoutID:    uuidRef(payout.ID),
		Description: "payout requested",
	}, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("seller_id", req.SellerID.String()).
		Int64("amount", req.Amount).
		Msg("payout requested")

	return payout, nil
}

// ProcessPayout sends a queued payout to the seller's external account and
// settles it against the reserved balance. The transfer carries an
// idempotency token derived from the payout id, and a payout that is
// already paid is returned as is, so retries move money at most once.
func (s *PayoutServiceImpl) ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout")
	}
	if payout.Status == domain.PayoutStatusPaid {
		return payout, nil
	}
	if payout.IsTerminal() {
		return nil, apperror.ErrInvalidTransition("payout", string(payout.Status), string(domain.PayoutStatusPaid))
	}

	wallet, err := s.ledger.wallets.GetByID(ctx, payout.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.ReservedBalance < payout.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}
	if !wallet.HasPayoutAccount() {
		return nil, apperror.ErrPayoutAccountMissing()
	}
	destination, err := s.encSvc.Decrypt(*wallet.PayoutAccountEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("open payout account: %w", err))
	}

	transferID, err := s.processor.CreateTransfer(ctx, ports.TransferRequest{
		Amount:         payout.Amount,
		Currency:       payout.Currency,
		Destination:    destination,
		IdempotencyKey: payout.TransferToken(),
		Metadata: map[string]string{
			"payout_id": payout.ID.String(),
			"seller_id": payout.SellerID.String(),
		},
	})
	if err != nil {
		if recErr := s.recordFailure(ctx, payoutID, err); recErr != nil {
			s.log.Error().Err(recErr).Str("payout_id", payoutID.String()).Msg("failed to record payout failure")
		}
		return nil, apperror.ErrProcessor(err)
	}

	return s.complete(ctx, payoutID, transferID)
}

func (s *PayoutServiceImpl) complete(ctx context.Context, payoutID uuid.UUID, transferID string) (*domain.Payout, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payouts.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout")
	}
	if payout.Status == domain.PayoutStatusPaid {
		return payout, nil
	}

	wallet, err := s.ledger.wallets.GetByIDForUpdate(ctx, dbTx, payout.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	now := s.now()
	if _, err := s.ledger.post(ctx, dbTx, wallet, domain.KindPayout, domain.BalanceReserved, payout.Amount, entryRefs{
		PayoutID:    uuidRef(payout.ID),
		Description: "payout transferred",
	}, now); err != nil {
		// The transfer went out but reserved funds were drawn down meanwhile.
		// The payout stays queued; retrying reuses the same transfer.
		s.log.Error().
			Err(err).
			Str("payout_id", payout.ID.String()).
			Str("transfer_id", transferID).
			Msg("transfer sent but reserved balance could not be debited")
		return nil, err
	}

	payout.Status = domain.PayoutStatusPaid
	payout.TransferID = strRef(transferID)
	payout.FailureReason = nil
	payout.Attempts++
	payout.ProcessedAt = &now
	payout.UpdatedAt = now
	if err := s.payouts.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("transfer_id", transferID).
		Int64("amount", payout.Amount).
		Msg("payout paid")

	return payout, nil
}

// recordFailure notes a failed transfer attempt. Retryable failures leave
// the payout queued. Permanent ones fail it and return the requested
// amount to the available balance.
func (s *PayoutServiceImpl) recordFailure(ctx context.Context, payoutID uuid.UUID, cause error) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payouts.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return fmt.Errorf("lock payout: %w", err)
	}
	if payout == nil || payout.IsTerminal() {
		return nil
	}

	now := s.now()
	payout.Attempts++
	payout.FailureReason = strRef(cause.Error())
	payout.UpdatedAt = now

	retryable := ports.IsRetryable(cause)
	if !retryable {
		wallet, err := s.ledger.wallets.GetByIDForUpdate(ctx, dbTx, payout.WalletID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return fmt.Errorf("wallet %s not found", payout.WalletID)
		}
		if _, err := s.ledger.post(ctx, dbTx, wallet, domain.KindCredit, domain.BalanceAvailable, payout.Amount, entryRefs{
			PayoutID:    uuidRef(payout.ID),
			Description: "payout failed, funds returned",
		}, now); err != nil {
			return err
		}
		payout.Status = domain.PayoutStatusFailed
		payout.ProcessedAt = &now
	}

	if err := s.payouts.Update(ctx, dbTx, payout); err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.log.Warn().
		Err(cause).
		Str("payout_id", payout.ID.String()).
		Bool("retryable", retryable).
		Int("attempts", payout.Attempts).
		Msg("payout transfer failed")
	return nil
}
