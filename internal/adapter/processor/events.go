package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// orderMetadataKey is the checkout metadata field carrying our order id.
const orderMetadataKey = "order_id"

// WebhookParser verifies Stripe-Signature headers and decodes events into
// the ledger's processor event variants.
type WebhookParser struct {
	secret    string
	tolerance time.Duration
}

// NewWebhookParser returns a parser for the given endpoint secret. A zero
// tolerance falls back to the library default of five minutes.
func NewWebhookParser(secret string, tolerance time.Duration) *WebhookParser {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookParser{secret: secret, tolerance: tolerance}
}

// Parse implements ports.EventParser.
func (p *WebhookParser) Parse(payload []byte, signature string) (domain.ProcessorEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ports.ErrEventSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrEventMalformed, err)
	}
	if event.ID == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing id or data", ports.ErrEventMalformed)
	}

	meta := domain.EventMeta{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: payload,
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ports.ErrEventMalformed, err)
		}
		return domain.CheckoutCompleted{
			EventMeta:       meta,
			SessionID:       session.ID,
			PaymentIntentID: intentID(session.PaymentIntent),
			OrderRef:        session.Metadata[orderMetadataKey],
			AmountTotal:     session.AmountTotal,
			Currency:        string(session.Currency),
		}, nil

	case stripe.EventTypeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ports.ErrEventMalformed, err)
		}
		return domain.CheckoutExpired{
			EventMeta:       meta,
			SessionID:       session.ID,
			PaymentIntentID: intentID(session.PaymentIntent),
			OrderRef:        session.Metadata[orderMetadataKey],
		}, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ports.ErrEventMalformed, err)
		}
		msg := "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return domain.PaymentFailed{
			EventMeta:       meta,
			PaymentIntentID: pi.ID,
			OrderRef:        pi.Metadata[orderMetadataKey],
			FailureMessage:  msg,
		}, nil
	}

	return domain.UnknownEvent{EventMeta: meta}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func intentID(pi *stripe.PaymentIntent) string {
	if pi == nil {
		return ""
	}
	return pi.ID
}
