package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OwnerType identifies who a wallet belongs to.
type OwnerType string

const (
	OwnerTypeSeller   OwnerType = "seller"
	OwnerTypeProvider OwnerType = "provider"
)

// BalanceType selects which of a wallet's two balances an entry affects.
type BalanceType string

const (
	BalanceAvailable BalanceType = "available"
	BalanceReserved  BalanceType = "reserved"
)

// ErrNegativeBalance is returned when an entry would take a balance below zero.
var ErrNegativeBalance = errors.New("balance would become negative")

// Wallet holds a seller's or provider's spendable and escrowed funds.
// Balances are projections of the wallet's ledger transactions and are
// only ever changed through Apply.
type Wallet struct {
	ID               uuid.UUID `json:"id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	OwnerType        OwnerType `json:"owner_type"`
	Currency         string    `json:"currency"`
	AvailableBalance int64     `json:"available_balance"`
	ReservedBalance  int64     `json:"reserved_balance"`
	PayoutAccountEnc *string   `json:"-"` // sealed external account reference
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewWallet returns an empty wallet for owner.
func NewWallet(ownerID uuid.UUID, ownerType OwnerType, currency string, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		OwnerType: ownerType,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPayoutAccount reports whether an external payout destination is linked.
func (w *Wallet) HasPayoutAccount() bool {
	return w.PayoutAccountEnc != nil && *w.PayoutAccountEnc != ""
}

// Balance returns the current value of the given balance.
func (w *Wallet) Balance(b BalanceType) int64 {
	if b == BalanceReserved {
		return w.ReservedBalance
	}
	return w.AvailableBalance
}

// Apply mutates the wallet by one ledger entry and returns the entry that
// records it. The wallet is left untouched when the entry is rejected.
func (w *Wallet) Apply(kind TransactionKind, balance BalanceType, amount int64, now time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, errors.New("ledger amount must be positive")
	}
	if !kind.Valid() {
		return nil, errors.New("unknown transaction kind: " + string(kind))
	}

	before := w.Balance(balance)
	after := before + kind.Sign()*amount
	if after < 0 {
		return nil, ErrNegativeBalance
	}

	switch balance {
	case BalanceAvailable:
		w.AvailableBalance = after
	case BalanceReserved:
		w.ReservedBalance = after
	default:
		return nil, errors.New("unknown balance type: " + string(balance))
	}
	w.UpdatedAt = now

	return &Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		Kind:          kind,
		Balance:       balance,
		Amount:        amount,
		Currency:      w.Currency,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     now,
	}, nil
}
