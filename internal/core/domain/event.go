package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventOutcome is the processing state recorded for a processor event.
type EventOutcome string

const (
	EventOutcomeProcessing    EventOutcome = "processing"
	EventOutcomeProcessed     EventOutcome = "processed"
	EventOutcomeIgnored       EventOutcome = "ignored"
	EventOutcomeFailed        EventOutcome = "failed"
	EventOutcomeIrrecoverable EventOutcome = "irrecoverable"
)

// IsFinal reports whether the event must never be handled again.
func (o EventOutcome) IsFinal() bool {
	switch o {
	case EventOutcomeProcessed, EventOutcomeIgnored, EventOutcomeIrrecoverable:
		return true
	}
	return false
}

// ProcessorEventLog records every processor event id ever received.
type ProcessorEventLog struct {
	ID          uuid.UUID    `json:"id"`
	EventID     string       `json:"event_id"`
	EventType   string       `json:"event_type"`
	Payload     []byte       `json:"-"`
	Outcome     EventOutcome `json:"outcome"`
	Error       *string      `json:"error,omitempty"`
	Attempts    int          `json:"attempts"`
	ReceivedAt  time.Time    `json:"received_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// Processor event type names as delivered on the wire.
const (
	EventTypeCheckoutCompleted = "checkout.session.completed"
	EventTypeCheckoutExpired   = "checkout.session.expired"
	EventTypePaymentFailed     = "payment_intent.payment_failed"
)

// ProcessorEvent is a verified event from the payment processor. The set of
// variants is closed; handlers switch on the concrete type.
type ProcessorEvent interface {
	Meta() EventMeta
	isProcessorEvent()
}

// EventMeta carries the fields every processor event has.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
	Payload []byte
}

func (m EventMeta) Meta() EventMeta { return m }
func (EventMeta) isProcessorEvent() {}

// CheckoutCompleted reports a buyer finished paying for a checkout session.
type CheckoutCompleted struct {
	EventMeta
	SessionID       string
	PaymentIntentID string
	OrderRef        string // order id from session metadata
	AmountTotal     int64
	Currency        string
}

// CheckoutExpired reports a checkout session lapsed without payment.
type CheckoutExpired struct {
	EventMeta
	SessionID       string
	PaymentIntentID string
	OrderRef        string
}

// PaymentFailed reports the processor declined the payment.
type PaymentFailed struct {
	EventMeta
	PaymentIntentID string
	OrderRef        string
	FailureMessage  string
}

// UnknownEvent is any event type the ledger does not act on.
type UnknownEvent struct {
	EventMeta
}
