package ports

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"
)

// PaymentProcessor is the external card processor used for transfers and refunds.
type PaymentProcessor interface {
	// CreateTransfer sends funds to a connected account. Repeating a call
	// with the same IdempotencyKey must not move funds twice.
	CreateTransfer(ctx context.Context, req TransferRequest) (string, error)
	CreateRefund(ctx context.Context, req ProcessorRefundRequest) (string, error)
	GetAccount(ctx context.Context, accountID string) (*ProcessorAccount, error)
}

// TransferRequest is an outbound transfer to a seller's connected account.
type TransferRequest struct {
	Amount         int64
	Currency       string
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

// ProcessorRefundRequest returns funds to the buyer's payment method.
type ProcessorRefundRequest struct {
	PaymentIntentID string
	Amount          int64
	IdempotencyKey  string
	Metadata        map[string]string
}

// ProcessorAccount is the subset of connected-account state the ledger checks.
type ProcessorAccount struct {
	ID              string
	PayoutsEnabled  bool
	DefaultCurrency string
}

// ProcessorError wraps a failed processor call. Retryable is false when the
// same request can never succeed (declined, invalid destination).
type ProcessorError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor %s: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a processor failure worth retrying.
// Errors that are not ProcessorErrors are treated as retryable.
func IsRetryable(err error) bool {
	var pe *ProcessorError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// Errors returned by EventParser.
var (
	ErrEventSignature = errors.New("event signature verification failed")
	ErrEventMalformed = errors.New("malformed event payload")
)

// EventParser authenticates a raw processor delivery and decodes it.
type EventParser interface {
	Parse(payload []byte, signature string) (domain.ProcessorEvent, error)
}
