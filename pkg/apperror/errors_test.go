package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)
	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"AlreadyProcessed", ErrAlreadyProcessed("Payout"), "PAY_003", 409},
		{"NotFound", ErrNotFound("Wallet"), "PAY_004", 404},
		{"InvalidTransition", ErrInvalidTransition("Refund", "rejected", "approved"), "PAY_005", 409},
		{"PayoutAccountMissing", ErrPayoutAccountMissing(), "PAY_006", 422},
		{"InvalidRefund", ErrInvalidRefund("nope"), "REF_001", 409},
		{"RefundExceeds", ErrRefundAmountExceedsCaptured(), "REF_002", 409},
		{"Clawback", ErrClawbackRequired(), "REF_003", 409},
		{"Evidence", ErrEvidenceRequired(), "REF_004", 400},
		{"Signature", ErrInvalidSignature(), "SEC_002", 400},
		{"Forbidden", ErrForbidden(), "AUTH_005", 403},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestProcessorError_WrapsCause(t *testing.T) {
	inner := fmt.Errorf("stripe: connection reset")
	err := ErrProcessor(inner)
	assert.Equal(t, "EXT_001", err.Code)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
	assert.True(t, errors.Is(err, inner))
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("settle: %w", ErrNotFound("Order"))
	assert.True(t, HasCode(err, CodeNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, HasCode(err, CodeInsufficientFunds))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrInvalidAmount()))
	assert.True(t, IsClientError(fmt.Errorf("x: %w", ErrClawbackRequired())))
	assert.False(t, IsClientError(InternalError(errors.New("db down"))))
	assert.False(t, IsClientError(ErrProcessor(errors.New("timeout"))))
	assert.False(t, IsClientError(errors.New("plain")))
}

func TestErrCurrencyMismatch_Message(t *testing.T) {
	err := ErrCurrencyMismatch("usd", "eur")
	assert.Equal(t, "VAL_002", err.Code)
	assert.Contains(t, err.Message, "usd")
	assert.Contains(t, err.Message, "eur")
}
