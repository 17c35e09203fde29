package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err (or anything it wraps) is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsClientError reports whether err is an AppError the caller caused (4xx).
// Anything else is treated as transient or internal.
func IsClientError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus >= 400 && appErr.HTTPStatus < 500
	}
	return false
}

const (
	CodeInsufficientFunds = "PAY_001"
	CodeInvalidAmount     = "PAY_002"
	CodeAlreadyProcessed  = "PAY_003"
	CodeNotFound          = "PAY_004"
	CodeClawbackRequired  = "REF_003"
	CodeProcessorFailure  = "EXT_001"
)

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusBadRequest)
}

// ---- Validation (VAL) ----

// Validation returns a generic validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrCurrencyMismatch(expected, got string) *AppError {
	return New("VAL_002", fmt.Sprintf("Currency mismatch: wallet uses %s, got %s", expected, got), http.StatusBadRequest)
}

// ---- Ledger Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrAlreadyProcessed(entity string) *AppError {
	return New(CodeAlreadyProcessed, fmt.Sprintf("%s already processed", entity), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(entity, from, to string) *AppError {
	return New("PAY_005", fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), http.StatusConflict)
}

func ErrPayoutAccountMissing() *AppError {
	return New("PAY_006", "No payout account linked to wallet", http.StatusUnprocessableEntity)
}

func ErrPayoutAccountNotReady() *AppError {
	return New("PAY_007", "Payout account cannot receive transfers", http.StatusUnprocessableEntity)
}

// ---- Refunds (REF) ----

func ErrInvalidRefund(reason string) *AppError {
	return New("REF_001", reason, http.StatusConflict)
}

func ErrRefundAmountExceedsCaptured() *AppError {
	return New("REF_002", "Refund amount exceeds captured payment amount", http.StatusConflict)
}

func ErrClawbackRequired() *AppError {
	return New(CodeClawbackRequired, "Seller reserved balance is insufficient; refund flagged for manual clawback", http.StatusConflict)
}

func ErrEvidenceRequired() *AppError {
	return New("REF_004", "Item-level refund requests require evidence", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Not allowed to act on this resource", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- External processor (EXT) ----

func ErrProcessor(err error) *AppError {
	return Wrap(CodeProcessorFailure, "Payment processor call failed", http.StatusBadGateway, err)
}

// ---- System & Infrastructure (SYS) ----

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
