package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/storage/memory"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testLease    = time.Minute
	testCacheTTL = time.Hour
)

type intakeFixture struct {
	parser     *mocks.MockEventParser
	settlement *mocks.MockSettlementService
	cache      *mocks.MockProcessedEventCache
	events     *memory.EventLogRepo
	svc        *EventIntakeServiceImpl
}

func newIntakeFixture(t *testing.T, withCache bool) *intakeFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &intakeFixture{
		parser:     mocks.NewMockEventParser(ctrl),
		settlement: mocks.NewMockSettlementService(ctrl),
		events:     memory.NewEventLogRepo(memory.NewStore()),
	}
	var cache ports.ProcessedEventCache
	if withCache {
		f.cache = mocks.NewMockProcessedEventCache(ctrl)
		cache = f.cache
	}
	f.svc = NewEventIntakeService(f.parser, f.events, cache, f.settlement, testLease, testCacheTTL, newTestLogger())
	return f
}

func completedEvent(id string) domain.CheckoutCompleted {
	return domain.CheckoutCompleted{
		EventMeta:       domain.EventMeta{ID: id, Type: domain.EventTypeCheckoutCompleted, Payload: []byte(`{}`)},
		SessionID:       "cs_1",
		PaymentIntentID: "pi_1",
		AmountTotal:     10000,
		Currency:        testCurrency,
	}
}

func (f *intakeFixture) outcome(t *testing.T, eventID string) *domain.ProcessorEventLog {
	t.Helper()
	e, err := f.events.Get(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e
}

func TestEventIntake_ParseErrors(t *testing.T) {
	f := newIntakeFixture(t, false)
	ctx := context.Background()

	f.parser.EXPECT().Parse(gomock.Any(), "bad").Return(nil, ports.ErrEventSignature)
	_, err := f.svc.Receive(ctx, []byte(`{}`), "bad")
	assert.True(t, apperror.HasCode(err, "SEC_002"))

	f.parser.EXPECT().Parse(gomock.Any(), "ok").Return(nil, ports.ErrEventMalformed)
	_, err = f.svc.Receive(ctx, []byte(`{`), "ok")
	assert.True(t, apperror.HasCode(err, "VAL_001"))
}

func TestEventIntake_ProcessesOnce(t *testing.T) {
	f := newIntakeFixture(t, false)
	ctx := context.Background()
	ev := completedEvent("evt_1")

	f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil).Times(2)
	f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(&domain.Payment{}, nil).Times(1)

	first, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", first.EventID)
	assert.Equal(t, domain.EventTypeCheckoutCompleted, first.EventType)
	assert.Equal(t, domain.EventOutcomeProcessed, first.Outcome)
	assert.False(t, first.Duplicate)

	second, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, domain.EventOutcomeProcessed, second.Outcome)

	logged := f.outcome(t, "evt_1")
	assert.Equal(t, 1, logged.Attempts)
	assert.NotNil(t, logged.ProcessedAt)
}

func TestEventIntake_Cache(t *testing.T) {
	ctx := context.Background()
	ev := completedEvent("evt_c")

	t.Run("hit skips the database", func(t *testing.T) {
		f := newIntakeFixture(t, true)
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.cache.EXPECT().IsProcessed(gomock.Any(), "evt_c").Return(true, nil)

		res, err := f.svc.Receive(ctx, ev.Payload, "sig")

		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		e, err := f.events.Get(ctx, "evt_c")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("miss processes and marks", func(t *testing.T) {
		f := newIntakeFixture(t, true)
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.cache.EXPECT().IsProcessed(gomock.Any(), "evt_c").Return(false, nil)
		f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(&domain.Payment{}, nil)
		f.cache.EXPECT().MarkProcessed(gomock.Any(), "evt_c", domain.EventOutcomeProcessed, testCacheTTL).Return(nil)

		res, err := f.svc.Receive(ctx, ev.Payload, "sig")

		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	})

	t.Run("redis errors fall through", func(t *testing.T) {
		f := newIntakeFixture(t, true)
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.cache.EXPECT().IsProcessed(gomock.Any(), "evt_c").Return(false, errors.New("connection refused"))
		f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(&domain.Payment{}, nil)
		f.cache.EXPECT().MarkProcessed(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

		res, err := f.svc.Receive(ctx, ev.Payload, "sig")

		require.NoError(t, err)
		assert.Equal(t, domain.EventOutcomeProcessed, res.Outcome)
	})
}

func TestEventIntake_ClientErrorIsAcknowledged(t *testing.T) {
	f := newIntakeFixture(t, false)
	ctx := context.Background()
	ev := completedEvent("evt_lost")

	f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil).Times(2)
	f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(nil, apperror.ErrNotFound("payment")).Times(1)

	res, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.EventOutcomeIrrecoverable, res.Outcome)

	logged := f.outcome(t, "evt_lost")
	assert.Equal(t, domain.EventOutcomeIrrecoverable, logged.Outcome)
	require.NotNil(t, logged.Error)
	assert.Contains(t, *logged.Error, "payment not found")

	again, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, domain.EventOutcomeIrrecoverable, again.Outcome)
}

func TestEventIntake_TransientErrorIsRetried(t *testing.T) {
	f := newIntakeFixture(t, false)
	ctx := context.Background()
	ev := completedEvent("evt_flaky")

	f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil).Times(3)
	gomock.InOrder(
		f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(nil, apperror.InternalError(errors.New("db down"))),
		f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(&domain.Payment{}, nil),
	)

	_, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.Error(t, err)
	assert.False(t, apperror.IsClientError(err))
	assert.Equal(t, domain.EventOutcomeFailed, f.outcome(t, "evt_flaky").Outcome)

	res, err := f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, domain.EventOutcomeProcessed, res.Outcome)
	assert.Equal(t, 2, f.outcome(t, "evt_flaky").Attempts)

	res, err = f.svc.Receive(ctx, ev.Payload, "sig")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestEventIntake_ProcessingLease(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh claim is left alone", func(t *testing.T) {
		f := newIntakeFixture(t, false)
		ev := completedEvent("evt_busy")
		now := time.Now().UTC()
		_, err := f.events.Insert(ctx, &domain.ProcessorEventLog{
			ID: uuid.New(), EventID: ev.ID, EventType: ev.Type,
			Outcome: domain.EventOutcomeProcessing, Attempts: 1, ReceivedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)

		res, err := f.svc.Receive(ctx, ev.Payload, "sig")

		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, domain.EventOutcomeProcessing, res.Outcome)
	})

	t.Run("stale claim is taken over", func(t *testing.T) {
		f := newIntakeFixture(t, false)
		ev := completedEvent("evt_stale")
		then := time.Now().UTC().Add(-10 * testLease)
		_, err := f.events.Insert(ctx, &domain.ProcessorEventLog{
			ID: uuid.New(), EventID: ev.ID, EventType: ev.Type,
			Outcome: domain.EventOutcomeProcessing, Attempts: 1, ReceivedAt: then, UpdatedAt: then,
		})
		require.NoError(t, err)
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).Return(&domain.Payment{}, nil)

		res, err := f.svc.Receive(ctx, ev.Payload, "sig")

		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, 2, f.outcome(t, ev.ID).Attempts)
	})
}

func TestEventIntake_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("expired session fails the payment", func(t *testing.T) {
		f := newIntakeFixture(t, false)
		ev := domain.CheckoutExpired{
			EventMeta:       domain.EventMeta{ID: "evt_exp", Type: domain.EventTypeCheckoutExpired},
			SessionID:       "cs_9",
			PaymentIntentID: "pi_9",
			OrderRef:        "ord",
		}
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.settlement.EXPECT().FailPayment(gomock.Any(), ports.PaymentFailure{
			SessionID: "cs_9", PaymentIntentID: "pi_9", OrderRef: "ord", Reason: "checkout session expired",
		}).Return(nil, nil)

		res, err := f.svc.Receive(ctx, nil, "sig")

		require.NoError(t, err)
		assert.Equal(t, domain.EventOutcomeProcessed, res.Outcome)
	})

	t.Run("payment failure carries the decline message", func(t *testing.T) {
		f := newIntakeFixture(t, false)
		ev := domain.PaymentFailed{
			EventMeta:       domain.EventMeta{ID: "evt_fail", Type: domain.EventTypePaymentFailed},
			PaymentIntentID: "pi_9",
			FailureMessage:  "card declined",
		}
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)
		f.settlement.EXPECT().FailPayment(gomock.Any(), ports.PaymentFailure{
			PaymentIntentID: "pi_9", Reason: "card declined",
		}).Return(nil, nil)

		_, err := f.svc.Receive(ctx, nil, "sig")

		require.NoError(t, err)
	})

	t.Run("unknown types are ignored", func(t *testing.T) {
		f := newIntakeFixture(t, false)
		ev := domain.UnknownEvent{EventMeta: domain.EventMeta{ID: "evt_u", Type: "customer.created"}}
		f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil)

		res, err := f.svc.Receive(ctx, nil, "sig")

		require.NoError(t, err)
		assert.Equal(t, domain.EventOutcomeIgnored, res.Outcome)
		assert.Equal(t, domain.EventOutcomeIgnored, f.outcome(t, "evt_u").Outcome)
	})
}

func TestEventIntake_ConcurrentDeliveries(t *testing.T) {
	f := newIntakeFixture(t, false)
	ev := completedEvent("evt_race")

	f.parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil).Times(10)
	f.settlement.EXPECT().SettleCheckout(gomock.Any(), ev).
		DoAndReturn(func(context.Context, domain.CheckoutCompleted) (*domain.Payment, error) {
			time.Sleep(10 * time.Millisecond)
			return &domain.Payment{}, nil
		}).Times(1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Receive(context.Background(), ev.Payload, "sig")
			if assert.NoError(t, err) && !res.Duplicate {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
}

func TestEventIntake_RedeliveryHoldsOnce(t *testing.T) {
	lf := newLedgerFixture(t)
	ctrl := gomock.NewController(t)
	parser := mocks.NewMockEventParser(ctrl)
	svc := NewEventIntakeService(parser, memory.NewEventLogRepo(lf.store), nil, lf.settlement, testLease, testCacheTTL, newTestLogger())
	ctx := context.Background()

	seller := uuid.New()
	o := lf.seedOrder(uuid.New(), 0, 0, item(seller, 1, 10000))
	_, err := lf.settlement.InitiatePayment(ctx, ports.InitiatePaymentRequest{OrderID: o.ID, BuyerID: o.BuyerID, SessionID: "cs_e2e"})
	require.NoError(t, err)
	ev := domain.CheckoutCompleted{
		EventMeta:       domain.EventMeta{ID: "evt_e2e", Type: domain.EventTypeCheckoutCompleted},
		SessionID:       "cs_e2e",
		PaymentIntentID: "pi_e2e",
		AmountTotal:     10000,
		Currency:        testCurrency,
	}
	parser.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(ev, nil).Times(3)

	for i := 0; i < 3; i++ {
		_, err := svc.Receive(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)
	}

	w := lf.walletOf(t, seller)
	assert.Equal(t, int64(8500), w.ReservedBalance)
	assert.Len(t, lf.entries(t, w.ID), 1)
}
