package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionKind_Sign(t *testing.T) {
	tests := []struct {
		kind TransactionKind
		want int64
	}{
		{KindCredit, 1},
		{KindHold, 1},
		{KindRelease, 1},
		{KindDebit, -1},
		{KindPayout, -1},
		{KindRefund, -1},
		{KindFee, -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, tt.kind.Valid())
			assert.Equal(t, tt.want, tt.kind.Sign())
		})
	}
	assert.False(t, TransactionKind("bonus").Valid())
}

func TestWallet_Apply(t *testing.T) {
	now := time.Now()

	t.Run("hold credits reserved", func(t *testing.T) {
		w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)
		tx, err := w.Apply(KindHold, BalanceReserved, 500, now)
		require.NoError(t, err)
		assert.Equal(t, int64(500), w.ReservedBalance)
		assert.Equal(t, int64(0), w.AvailableBalance)
		assert.Equal(t, int64(0), tx.BalanceBefore)
		assert.Equal(t, int64(500), tx.BalanceAfter)
		assert.Equal(t, w.ID, tx.WalletID)
		assert.Equal(t, "usd", tx.Currency)
	})

	t.Run("debit below zero is rejected and wallet untouched", func(t *testing.T) {
		w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)
		w.AvailableBalance = 100
		_, err := w.Apply(KindPayout, BalanceAvailable, 101, now)
		assert.ErrorIs(t, err, ErrNegativeBalance)
		assert.Equal(t, int64(100), w.AvailableBalance)
	})

	t.Run("debit to exactly zero", func(t *testing.T) {
		w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)
		w.ReservedBalance = 250
		tx, err := w.Apply(KindRefund, BalanceReserved, 250, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), w.ReservedBalance)
		assert.Equal(t, int64(-250), tx.Delta())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)
		_, err := w.Apply(KindCredit, BalanceAvailable, 0, now)
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)
		_, err := w.Apply(TransactionKind("gift"), BalanceAvailable, 10, now)
		assert.Error(t, err)
	})
}

func TestReplay(t *testing.T) {
	now := time.Now()
	w := NewWallet(uuid.New(), OwnerTypeSeller, "usd", now)

	var txns []Transaction
	post := func(kind TransactionKind, b BalanceType, amt int64) {
		tx, err := w.Apply(kind, b, amt, now)
		require.NoError(t, err)
		tx.Sequence = int64(len(txns) + 1)
		txns = append(txns, *tx)
	}
	post(KindHold, BalanceReserved, 1000)
	post(KindCredit, BalanceAvailable, 300)
	post(KindPayout, BalanceAvailable, 200)
	post(KindRefund, BalanceReserved, 400)

	res, err := Replay(txns)
	require.NoError(t, err)
	assert.Equal(t, w.AvailableBalance, res.Available)
	assert.Equal(t, w.ReservedBalance, res.Reserved)
	assert.Equal(t, 4, res.Entries)
	assert.Empty(t, res.Breaks)

	t.Run("detects a break", func(t *testing.T) {
		broken := append([]Transaction(nil), txns...)
		broken[2].BalanceBefore = 999
		res, err := Replay(broken)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{broken[2].ID}, res.Breaks)
	})

	t.Run("rejects out of order", func(t *testing.T) {
		swapped := []Transaction{txns[1], txns[0]}
		_, err := Replay(swapped)
		assert.Error(t, err)
	})
}

func TestFeePolicy_Fee(t *testing.T) {
	tests := []struct {
		name  string
		bps   int64
		gross int64
		want  int64
	}{
		{"15 percent", 1500, 10000, 1500},
		{"rounds half up", 1500, 3, 0},
		{"rounds up", 1500, 7, 1},
		{"zero bps", 0, 10000, 0},
		{"zero gross", 1500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeePolicy{Bps: tt.bps}.Fee(tt.gross))
		})
	}
}

func TestFeePolicy_Breakdown(t *testing.T) {
	sellerA, sellerB := uuid.New(), uuid.New()
	o := &Order{
		Items: []OrderItem{
			{ProductID: uuid.New(), SellerID: sellerA, Quantity: 2, UnitPrice: 1500},
			{ProductID: uuid.New(), SellerID: sellerB, Quantity: 1, UnitPrice: 1000},
			{ProductID: uuid.New(), SellerID: sellerA, Quantity: 1, UnitPrice: 1000},
		},
		ShippingAmount: 500,
		TaxAmount:      301,
	}

	out := FeePolicy{Bps: 1000}.Breakdown(o)
	require.Len(t, out, 2)

	var gross int64
	for _, s := range out {
		gross += s.Gross
		assert.Equal(t, s.Gross-s.Fee, s.Net)
	}
	assert.Equal(t, o.Total(), gross)

	a, _ := (&Payment{Breakdown: out}).SettlementFor(sellerA)
	b, _ := (&Payment{Breakdown: out}).SettlementFor(sellerB)
	// A has 4000 of the 5000 subtotal, so 80% of the 801 in extras.
	assert.Equal(t, int64(4000+641), a.Gross)
	assert.Equal(t, int64(1000+160), b.Gross)
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		weights []int64
		want    []int64
	}{
		{"even", 100, []int64{1, 1}, []int64{50, 50}},
		{"remainder to largest", 100, []int64{1, 2}, []int64{33, 67}},
		{"three way", 10, []int64{1, 1, 1}, []int64{4, 3, 3}},
		{"zero weights go to first", 7, []int64{0, 0}, []int64{7, 0}},
		{"zero amount", 0, []int64{3, 4}, []int64{0, 0}},
		{"no weights", 5, nil, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allocate(tt.amount, tt.weights))
		})
	}
}

func TestProportionalShare(t *testing.T) {
	assert.Equal(t, int64(250), ProportionalShare(1000, 1, 4))
	assert.Equal(t, int64(333), ProportionalShare(1000, 1, 3))
	assert.Equal(t, int64(1000), ProportionalShare(1000, 5, 4))
	assert.Equal(t, int64(0), ProportionalShare(1000, 0, 4))
	assert.Equal(t, int64(0), ProportionalShare(1000, 1, 0))
}

func TestPayment_Refunds(t *testing.T) {
	now := time.Now()
	p := &Payment{Amount: 1000, Status: PaymentStatusPending}
	assert.Equal(t, int64(0), p.Refundable())

	p.Status = PaymentStatusPaid
	assert.Equal(t, int64(1000), p.Refundable())

	p.ApplyRefund(400, now)
	assert.Equal(t, PaymentStatusPartiallyRefunded, p.Status)
	assert.Equal(t, int64(600), p.Refundable())

	p.ApplyRefund(600, now)
	assert.Equal(t, PaymentStatusRefunded, p.Status)
	assert.Equal(t, int64(0), p.Refundable())
}

func TestRefund_Transitions(t *testing.T) {
	tests := []struct {
		from RefundStatus
		to   RefundStatus
		want bool
	}{
		{RefundStatusRequested, RefundStatusUnderReview, true},
		{RefundStatusRequested, RefundStatusApproved, true},
		{RefundStatusRequested, RefundStatusRejected, true},
		{RefundStatusUnderReview, RefundStatusApproved, true},
		{RefundStatusUnderReview, RefundStatusRejected, true},
		{RefundStatusApproved, RefundStatusRefundedFull, true},
		{RefundStatusApproved, RefundStatusRefundedPartial, true},
		{RefundStatusApproved, RefundStatusRejected, false},
		{RefundStatusRejected, RefundStatusApproved, false},
		{RefundStatusRefundedFull, RefundStatusRefundedPartial, false},
		{RefundStatusRequested, RefundStatusRefundedFull, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			r := &Refund{ID: uuid.New(), Status: tt.from}
			err := r.TransitionTo(tt.to, time.Now())
			if tt.want {
				require.NoError(t, err)
				assert.Equal(t, tt.to, r.Status)
			} else {
				assert.Error(t, err)
				assert.Equal(t, tt.from, r.Status)
			}
		})
	}
}

func TestRefund_ResolvedAtSetOnTerminal(t *testing.T) {
	r := &Refund{ID: uuid.New(), Status: RefundStatusUnderReview}
	require.NoError(t, r.TransitionTo(RefundStatusApproved, time.Now()))
	assert.Nil(t, r.ResolvedAt)
	require.NoError(t, r.TransitionTo(RefundStatusRefundedFull, time.Now()))
	assert.NotNil(t, r.ResolvedAt)
	assert.True(t, r.IsTerminal())
}

func TestEventOutcome_IsFinal(t *testing.T) {
	assert.True(t, EventOutcomeProcessed.IsFinal())
	assert.True(t, EventOutcomeIgnored.IsFinal())
	assert.True(t, EventOutcomeIrrecoverable.IsFinal())
	assert.False(t, EventOutcomeProcessing.IsFinal())
	assert.False(t, EventOutcomeFailed.IsFinal())
}

func TestProcessorEvent_Variants(t *testing.T) {
	events := []ProcessorEvent{
		CheckoutCompleted{EventMeta: EventMeta{ID: "evt_1", Type: EventTypeCheckoutCompleted}},
		CheckoutExpired{EventMeta: EventMeta{ID: "evt_2", Type: EventTypeCheckoutExpired}},
		PaymentFailed{EventMeta: EventMeta{ID: "evt_3", Type: EventTypePaymentFailed}},
		UnknownEvent{EventMeta: EventMeta{ID: "evt_4", Type: "customer.created"}},
	}
	for _, ev := range events {
		assert.NotEmpty(t, ev.Meta().ID)
		assert.NotEmpty(t, ev.Meta().Type)
	}
}

func TestTokens(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "payout-"+id.String(), (&Payout{ID: id}).TransferToken())
	assert.Equal(t, "refund-"+id.String(), (&Refund{ID: id}).RefundToken())
}
