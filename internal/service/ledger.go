package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// entryRefs links a ledger entry to the records that caused it.
type entryRefs struct {
	OrderID     *uuid.UUID
	PaymentID   *uuid.UUID
	PayoutID    *uuid.UUID
	RefundID    *uuid.UUID
	Description string
}

// ledger is the single path through which wallet balances change. Each post
// writes the new balances and the entry recording them in the caller's
// unit of work, so both commit or neither does.
type ledger struct {
	wallets ports.WalletRepository
	txns    ports.TransactionRepository
}

func (l ledger) post(
	ctx context.Context, tx pgx.Tx, w *domain.Wallet,
	kind domain.TransactionKind, balance domain.BalanceType, amount int64,
	refs entryRefs, now time.Time,
) (*domain.Transaction, error) {
	entry, err := w.Apply(kind, balance, amount, now)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("apply %s: %w", kind, err))
	}
	entry.OrderID = refs.OrderID
	entry.PaymentID = refs.PaymentID
	entry.PayoutID = refs.PayoutID
	entry.RefundID = refs.RefundID
	entry.Description = refs.Description

	if err := l.wallets.UpdateBalances(ctx, tx, w); err != nil {
		if errors.Is(err, domain.ErrNegativeBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := l.txns.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}
	return entry, nil
}

// walletFor locks the owner's wallet, creating it on first use.
func (l ledger) walletFor(
	ctx context.Context, tx pgx.Tx, ownerID uuid.UUID,
	ownerType domain.OwnerType, currency string, now time.Time,
) (*domain.Wallet, error) {
	w, err := l.wallets.GetByOwnerForUpdate(ctx, tx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w != nil {
		return w, nil
	}

	if err := l.wallets.Create(ctx, tx, domain.NewWallet(ownerID, ownerType, currency, now)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	// Re-read: a concurrent unit of work may have created it first.
	w, err = l.wallets.GetByOwnerForUpdate(ctx, tx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet for %s vanished after create", ownerID))
	}
	return w, nil
}

func uuidRef(id uuid.UUID) *uuid.UUID { return &id }

func strRef(s string) *string { return &s }

// sameCurrency compares ISO codes; processors report them in lower case.
func sameCurrency(a, b string) bool { return strings.EqualFold(a, b) }
