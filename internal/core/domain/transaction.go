package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionKind represents the kind of balance mutation.
type TransactionKind string

const (
	KindCredit  TransactionKind = "credit"
	KindDebit   TransactionKind = "debit"
	KindHold    TransactionKind = "hold"
	KindRelease TransactionKind = "release"
	KindPayout  TransactionKind = "payout"
	KindRefund  TransactionKind = "refund"
	KindFee     TransactionKind = "fee"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindCredit, KindDebit, KindHold, KindRelease, KindPayout, KindRefund, KindFee:
		return true
	}
	return false
}

// Sign is +1 for kinds that add to a balance and -1 for kinds that take from it.
func (k TransactionKind) Sign() int64 {
	switch k {
	case KindCredit, KindHold, KindRelease:
		return 1
	default:
		return -1
	}
}

// Transaction is an immutable ledger entry for a single balance mutation.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"` // store-assigned, monotonic
	WalletID      uuid.UUID       `json:"wallet_id"`
	Kind          TransactionKind `json:"kind"`
	Balance       BalanceType     `json:"balance"`
	Amount        int64           `json:"amount"` // minor units, always positive
	Currency      string          `json:"currency"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	OrderID       *uuid.UUID      `json:"order_id,omitempty"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	PayoutID      *uuid.UUID      `json:"payout_id,omitempty"`
	RefundID      *uuid.UUID      `json:"refund_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Delta is the signed effect of the entry on its balance.
func (t *Transaction) Delta() int64 {
	return t.Kind.Sign() * t.Amount
}

// ReplayResult is the outcome of replaying a wallet's ledger.
type ReplayResult struct {
	Available int64
	Reserved  int64
	Entries   int
	// Breaks lists entries whose BalanceBefore did not match the running balance.
	Breaks []uuid.UUID
}

// Replay folds transactions (ordered by Sequence) into balances starting from zero.
func Replay(txns []Transaction) (*ReplayResult, error) {
	res := &ReplayResult{}
	var lastSeq int64
	for i := range txns {
		t := &txns[i]
		if i > 0 && t.Sequence <= lastSeq {
			return nil, fmt.Errorf("ledger out of order at sequence %d", t.Sequence)
		}
		lastSeq = t.Sequence

		running := &res.Available
		if t.Balance == BalanceReserved {
			running = &res.Reserved
		}
		if t.BalanceBefore != *running || t.BalanceAfter != *running+t.Delta() {
			res.Breaks = append(res.Breaks, t.ID)
		}
		*running += t.Delta()
		res.Entries++
	}
	return res, nil
}
