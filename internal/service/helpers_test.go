package service

import (
	"context"
	"io"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/storage/memory"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testCurrency = "usd"
	testFeeBps   = 1500
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// ledgerFixture wires the workflows to an in-memory store and a mocked processor.
type ledgerFixture struct {
	store     *memory.Store
	wallets   *memory.WalletRepo
	txns      *memory.TransactionRepo
	payments  *memory.PaymentRepo
	payouts   *memory.PayoutRepo
	refunds   *memory.RefundRepo
	orders    *memory.OrderRepo
	processor *mocks.MockPaymentProcessor
	enc       *AESEncryptionService

	settlement *SettlementServiceImpl
	payout     *PayoutServiceImpl
	refund     *RefundServiceImpl
	wallet     *WalletServiceImpl
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	s := memory.NewStore()
	f := &ledgerFixture{
		store:     s,
		wallets:   memory.NewWalletRepo(s),
		txns:      memory.NewTransactionRepo(s),
		payments:  memory.NewPaymentRepo(s),
		payouts:   memory.NewPayoutRepo(s),
		refunds:   memory.NewRefundRepo(s),
		orders:    memory.NewOrderRepo(s),
		processor: mocks.NewMockPaymentProcessor(ctrl),
		enc:       enc,
	}
	log := newTestLogger()
	f.settlement = NewSettlementService(f.payments, f.refunds, f.orders, f.wallets, f.txns, s, domain.FeePolicy{Bps: testFeeBps}, log)
	f.payout = NewPayoutService(f.payouts, f.wallets, f.txns, s, f.processor, enc, log)
	f.refund = NewRefundService(f.refunds, f.payments, f.orders, f.wallets, f.txns, s, f.processor, log)
	f.wallet = NewWalletService(f.wallets, f.txns, s, f.processor, enc, testCurrency, log)
	return f
}

// seedOrder stores a pending order and stocks its products.
func (f *ledgerFixture) seedOrder(buyerID uuid.UUID, shipping, tax int64, items ...domain.OrderItem) domain.Order {
	o := domain.Order{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		Currency:       testCurrency,
		Status:         domain.OrderStatusPending,
		Items:          items,
		ShippingAmount: shipping,
		TaxAmount:      tax,
		CreatedAt:      time.Now().UTC(),
	}
	f.store.PutOrder(o)
	for _, it := range items {
		f.store.SetStock(it.ProductID, 10)
	}
	return o
}

func item(sellerID uuid.UUID, qty, unitPrice int64) domain.OrderItem {
	return domain.OrderItem{ProductID: uuid.New(), SellerID: sellerID, Quantity: qty, UnitPrice: unitPrice}
}

// paidPayment checks out and settles order, as the processor would.
func (f *ledgerFixture) paidPayment(t *testing.T, o domain.Order) *domain.Payment {
	t.Helper()
	ctx := context.Background()
	sessionID := "cs_" + o.ID.String()
	_, err := f.settlement.InitiatePayment(ctx, ports.InitiatePaymentRequest{
		OrderID: o.ID, BuyerID: o.BuyerID, SessionID: sessionID,
	})
	require.NoError(t, err)
	p, err := f.settlement.SettleCheckout(ctx, domain.CheckoutCompleted{
		EventMeta:       domain.EventMeta{ID: "evt_" + o.ID.String(), Type: domain.EventTypeCheckoutCompleted},
		SessionID:       sessionID,
		PaymentIntentID: "pi_" + o.ID.String(),
		AmountTotal:     o.Total(),
		Currency:        o.Currency,
	})
	require.NoError(t, err)
	return p
}

// fund posts credits so owner's wallet holds the given balances, and links
// a payout account.
func (f *ledgerFixture) fund(t *testing.T, ownerID uuid.UUID, available, reserved int64) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	l := ledger{wallets: f.wallets, txns: f.txns}
	now := time.Now().UTC()

	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	w, err := l.walletFor(ctx, tx, ownerID, domain.OwnerTypeSeller, testCurrency, now)
	require.NoError(t, err)
	if available > 0 {
		_, err = l.post(ctx, tx, w, domain.KindCredit, domain.BalanceAvailable, available, entryRefs{}, now)
		require.NoError(t, err)
	}
	if reserved > 0 {
		_, err = l.post(ctx, tx, w, domain.KindHold, domain.BalanceReserved, reserved, entryRefs{}, now)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))

	sealed, err := f.enc.Encrypt("acct_" + ownerID.String()[:8])
	require.NoError(t, err)
	require.NoError(t, f.wallets.SetPayoutAccount(ctx, w.ID, sealed))
	return f.walletOf(t, ownerID)
}

func (f *ledgerFixture) walletOf(t *testing.T, ownerID uuid.UUID) *domain.Wallet {
	t.Helper()
	w, err := f.wallets.GetByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

func (f *ledgerFixture) entries(t *testing.T, walletID uuid.UUID) []domain.Transaction {
	t.Helper()
	txns, err := f.txns.ListAllByWallet(context.Background(), walletID)
	require.NoError(t, err)
	return txns
}

// requireConsistent asserts the wallet's balances match its replayed ledger.
func (f *ledgerFixture) requireConsistent(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	report, err := f.wallet.Reconcile(context.Background(), walletID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "ledger drift: %+v", report)
}
