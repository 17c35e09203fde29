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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	ledger          ledger
	transactor      ports.DBTransactor
	processor       ports.PaymentProcessor
	encSvc          ports.EncryptionService
	defaultCurrency string
	log             zerolog.Logger
	now             func() time.Time
}

// NewWalletService creates a new WalletServiceImpl. defaultCurrency is used
// for wallets created when an account is linked before the first sale.
func NewWalletService(
	wallets ports.WalletRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	processor ports.PaymentProcessor,
	encSvc ports.EncryptionService,
	defaultCurrency string,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		ledger:          ledger{wallets: wallets, txns: txns},
		transactor:      transactor,
		processor:       processor,
		encSvc:          encSvc,
		defaultCurrency: defaultCurrency,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// GetWallet returns the wallet owned by ownerID.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.ledger.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// ListTransactions pages through the owner's ledger, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, ownerID uuid.UUID, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	w, err := s.GetWallet(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if params.Kind != nil && !params.Kind.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *params.Kind))
	}
	if params.From != nil && params.To != nil && *params.From > *params.To {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	params.WalletID = w.ID
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	txns, total, err := s.ledger.txns.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// LinkPayoutAccount checks a connected account with the processor and
// stores it sealed on the owner's wallet.
func (s *WalletServiceImpl) LinkPayoutAccount(ctx context.Context, ownerID uuid.UUID, accountID string) (*domain.Wallet, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperror.Validation("account_id is required")
	}

	wallet, err := s.ensureWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	acct, err := s.processor.GetAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrProcessor(err)
	}
	if !acct.PayoutsEnabled {
		return nil, apperror.ErrPayoutAccountNotReady()
	}
	if acct.DefaultCurrency != "" && !sameCurrency(acct.DefaultCurrency, wallet.Currency) {
		return nil, apperror.ErrCurrencyMismatch(wallet.Currency, acct.DefaultCurrency)
	}

	sealed, err := s.encSvc.Encrypt(acct.ID)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("seal payout account: %w", err))
	}
	if err := s.ledger.wallets.SetPayoutAccount(ctx, wallet.ID, sealed); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set payout account: %w", err))
	}
	wallet.PayoutAccountEnc = &sealed

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", ownerID.String()).
		Msg("payout account linked")

	return wallet, nil
}

func (s *WalletServiceImpl) ensureWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.ledger.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w != nil {
		return w, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err = s.ledger.walletFor(ctx, dbTx, ownerID, domain.OwnerTypeSeller, s.defaultCurrency, s.now())
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return w, nil
}

// Reconcile replays a wallet's ledger and compares the result with the
// stored balances.
func (s *WalletServiceImpl) Reconcile(ctx context.Context, walletID uuid.UUID) (*ports.ReconcileReport, error) {
	w, err := s.ledger.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	txns, err := s.ledger.txns.ListAllByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	replayed, err := domain.Replay(txns)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("replay ledger: %w", err))
	}

	report := &ports.ReconcileReport{
		WalletID:          w.ID,
		StoredAvailable:   w.AvailableBalance,
		StoredReserved:    w.ReservedBalance,
		ReplayedAvailable: replayed.Available,
		ReplayedReserved:  replayed.Reserved,
		Entries:           replayed.Entries,
		Breaks:            replayed.Breaks,
	}
	report.Consistent = len(report.Breaks) == 0 &&
		report.StoredAvailable == report.ReplayedAvailable &&
		report.StoredReserved == report.ReplayedReserved

	if !report.Consistent {
		s.log.Error().
			Str("wallet_id", w.ID.String()).
			Int64("stored_available", report.StoredAvailable).
			Int64("replayed_available", report.ReplayedAvailable).
			Int64("stored_reserved", report.StoredReserved).
			Int64("replayed_reserved", report.ReplayedReserved).
			Int("breaks", len(report.Breaks)).
			Msg("wallet ledger drift detected")
	}
	return report, nil
}
