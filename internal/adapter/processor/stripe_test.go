package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStripe(t *testing.T, h http.HandlerFunc) *Stripe {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewStripe(config.ProcessorConfig{
		SecretKey:  "sk_test_123",
		APIBaseURL: srv.URL,
		MaxRetries: 0,
	}, zerolog.Nop())
}

func writeStripeError(w http.ResponseWriter, status int, typ, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"code":%q,"message":"rejected"}}`, typ, code)
}

func TestStripe_CreateTransfer(t *testing.T) {
	var gotKey, gotForm string
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/transfers", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm.Get("destination")
		assert.Equal(t, "1500", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "po-1", r.PostForm.Get("metadata[payout_id]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"tr_123","object":"transfer","amount":1500,"currency":"usd"}`)
	})

	id, err := s.CreateTransfer(context.Background(), ports.TransferRequest{
		Amount:         1500,
		Currency:       "usd",
		Destination:    "acct_1",
		IdempotencyKey: "payout-abc",
		Metadata:       map[string]string{"payout_id": "po-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "tr_123", id)
	assert.Equal(t, "payout-abc", gotKey)
	assert.Equal(t, "acct_1", gotForm)
}

func TestStripe_CreateRefund(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_9", r.PostForm.Get("payment_intent"))
		assert.Equal(t, "700", r.PostForm.Get("amount"))
		assert.Equal(t, "refund-xyz", r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"re_1","object":"refund","amount":700}`)
	})

	id, err := s.CreateRefund(context.Background(), ports.ProcessorRefundRequest{
		PaymentIntentID: "pi_9",
		Amount:          700,
		IdempotencyKey:  "refund-xyz",
	})

	require.NoError(t, err)
	assert.Equal(t, "re_1", id)
}

func TestStripe_GetAccount(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/accounts/acct_7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"acct_7","object":"account","payouts_enabled":true,"default_currency":"eur"}`)
	})

	acct, err := s.GetAccount(context.Background(), "acct_7")

	require.NoError(t, err)
	assert.Equal(t, "acct_7", acct.ID)
	assert.True(t, acct.PayoutsEnabled)
	assert.Equal(t, "eur", acct.DefaultCurrency)
}

func TestStripe_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		typ       string
		code      string
		retryable bool
	}{
		{"card declined", http.StatusPaymentRequired, "card_error", "card_declined", false},
		{"invalid destination", http.StatusBadRequest, "invalid_request_error", "resource_missing", false},
		{"idempotency reuse", http.StatusConflict, "idempotency_error", "", false},
		{"rate limited", http.StatusTooManyRequests, "invalid_request_error", "rate_limit", true},
		{"platform balance short", http.StatusBadRequest, "invalid_request_error", "balance_insufficient", true},
		{"object locked", http.StatusConflict, "invalid_request_error", "lock_timeout", true},
		{"server error", http.StatusInternalServerError, "api_error", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
				writeStripeError(w, tt.status, tt.typ, tt.code)
			})

			_, err := s.CreateTransfer(context.Background(), ports.TransferRequest{
				Amount: 100, Currency: "usd", Destination: "acct_1", IdempotencyKey: "payout-1",
			})

			require.Error(t, err)
			var pe *ports.ProcessorError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "create transfer", pe.Op)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.Equal(t, tt.retryable, ports.IsRetryable(err))
		})
	}
}

func TestClassify_NetworkError(t *testing.T) {
	err := classify("create refund", errors.New("connection reset"))

	var pe *ports.ProcessorError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Retryable)
	assert.Contains(t, err.Error(), "connection reset")
}
