// Package processor adapts the Stripe API to the ledger's processor ports.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Stripe implements ports.PaymentProcessor with a dedicated API client, so
// the package-level stripe.Key is never touched.
type Stripe struct {
	api *client.API
	log zerolog.Logger
}

// NewStripe builds a client for cfg. An empty APIBaseURL means the live API.
func NewStripe(cfg config.ProcessorConfig, log zerolog.Logger) *Stripe {
	log = log.With().Str("component", "stripe").Logger()

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     &leveledLogger{log: log},
	}
	if cfg.APIBaseURL != "" {
		backendCfg.URL = stripe.String(cfg.APIBaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &Stripe{
		api: client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		log: log,
	}
}

// CreateTransfer moves funds to a connected account.
func (s *Stripe) CreateTransfer(ctx context.Context, req ports.TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return "", classify("create transfer", err)
	}

	s.log.Info().
		Str("transfer_id", tr.ID).
		Str("idempotency_key", req.IdempotencyKey).
		Int64("amount", req.Amount).
		Msg("transfer created")
	return tr.ID, nil
}

// CreateRefund refunds part or all of a payment intent.
func (s *Stripe) CreateRefund(ctx context.Context, req ports.ProcessorRefundRequest) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	rf, err := s.api.Refunds.New(params)
	if err != nil {
		return "", classify("create refund", err)
	}

	s.log.Info().
		Str("refund_id", rf.ID).
		Str("payment_intent", req.PaymentIntentID).
		Int64("amount", req.Amount).
		Msg("refund created")
	return rf.ID, nil
}

// GetAccount fetches the connected account a seller wants to be paid to.
func (s *Stripe) GetAccount(ctx context.Context, accountID string) (*ports.ProcessorAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := s.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, classify("get account", err)
	}
	return &ports.ProcessorAccount{
		ID:              acct.ID,
		PayoutsEnabled:  acct.PayoutsEnabled,
		DefaultCurrency: string(acct.DefaultCurrency),
	}, nil
}

// classify wraps err in a ports.ProcessorError. Requests Stripe rejected
// outright are permanent. Rate limits, server errors, network failures and
// conditions on the platform side (an empty platform balance, a lock held
// by a concurrent request) can be retried with the same idempotency key.
func classify(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &ports.ProcessorError{Op: op, Retryable: true, Err: err}
	}

	retryable := true
	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.Code == stripe.ErrorCodeBalanceInsufficient,
		se.Code == stripe.ErrorCodeLockTimeout:
	case se.Type == stripe.ErrorTypeCard,
		se.Type == stripe.ErrorTypeInvalidRequest,
		se.Type == stripe.ErrorTypeIdempotency,
		se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500:
		retryable = false
	}
	return &ports.ProcessorError{
		Op:        op,
		Retryable: retryable,
		Err:       fmt.Errorf("%s (%s): %s", se.Type, se.Code, se.Msg),
	}
}

// leveledLogger routes stripe-go's logging into zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l *leveledLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l *leveledLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l *leveledLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
