package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code classifies an Error for callers and for HTTP translation.
type Code string

const (
	CodeValidation          Code = "VALIDATION_FAILED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeConflict            Code = "CONFLICT"
	CodeIllegalTransition   Code = "ILLEGAL_TRANSITION"
	CodeLedgerTimeout       Code = "LEDGER_TIMEOUT"
	CodeInsufficientFunds   Code = "LEDGER_INSUFFICIENT_FUNDS"
	CodeLedgerRejected      Code = "LEDGER_REJECTED"
	CodeLedgerUnavailable   Code = "LEDGER_UNAVAILABLE"
	CodeStoreFailed         Code = "STORE_FAILED"
	CodeNeedsReconciliation Code = "NEEDS_RECONCILIATION"
	CodeInternal            Code = "INTERNAL"
)

// Error is the error type returned across service boundaries.
type Error struct {
	Code      Code                   `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key/value and returns the receiver.
func (e *Error) WithMetadata(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails sets a human readable detail string.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrConflict            = &Error{Code: CodeConflict}
	ErrIllegalTransition   = &Error{Code: CodeIllegalTransition}
	ErrLedgerTimeout       = &Error{Code: CodeLedgerTimeout}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds}
	ErrLedgerRejected      = &Error{Code: CodeLedgerRejected}
	ErrLedgerUnavailable   = &Error{Code: CodeLedgerUnavailable}
	ErrStoreFailed         = &Error{Code: CodeStoreFailed}
	ErrNeedsReconciliation = &Error{Code: CodeNeedsReconciliation}
)

// New builds an Error without a cause.
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: retryable(code),
		Timestamp: time.Now(),
	}
}

// Wrap builds an Error around cause.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

func Validation(message string) *Error { return New(CodeValidation, message) }

func NotFound(what string) *Error { return New(CodeNotFound, what+" not found") }

func Forbidden(message string) *Error { return New(CodeForbidden, message) }

func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }

func Conflict(message string) *Error { return New(CodeConflict, message) }

// IllegalTransition reports a transition requested from the wrong source status.
func IllegalTransition(transition, current string) *Error {
	return New(CodeIllegalTransition, fmt.Sprintf("cannot %s a project in status %q", transition, current)).
		WithMetadata("transition", transition).
		WithMetadata("status", current)
}

// Ledger wraps a ledger failure under one of the ledger codes.
func Ledger(code Code, operation string, cause error) *Error {
	return Wrap(code, "ledger "+operation+" failed", cause).WithMetadata("operation", operation)
}

func Store(operation string, cause error) *Error {
	return Wrap(CodeStoreFailed, "store "+operation+" failed", cause)
}

// NeedsReconciliation marks a confirmed ledger effect whose persistence failed.
func NeedsReconciliation(projectID, transition, contractAddress string, cause error) *Error {
	return Wrap(CodeNeedsReconciliation, "ledger effect confirmed but project record not updated", cause).
		WithMetadata("projectId", projectID).
		WithMetadata("transition", transition).
		WithMetadata("contractAddress", contractAddress)
}

func Internal(message string, cause error) *Error { return Wrap(CodeInternal, message, cause) }

func retryable(code Code) bool {
	switch code {
	case CodeLedgerTimeout, CodeInsufficientFunds, CodeLedgerUnavailable, CodeStoreFailed:
		return true
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether a caller may retry the failed operation.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// HTTPStatus maps err to the status the API answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeIllegalTransition:
		return http.StatusConflict
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeLedgerRejected:
		return http.StatusUnprocessableEntity
	case CodeLedgerTimeout:
		return http.StatusGatewayTimeout
	case CodeLedgerUnavailable:
		return http.StatusBadGateway
	case CodeStoreFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
