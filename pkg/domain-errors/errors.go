// Package domainerrors defines the closed set of coded errors the ledger
// exposes to callers. Services translate store sentinels into these; the HTTP
// layer maps codes to status codes. No generic "internal error" should reach a
// caller for any condition named here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain error category.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeValidation        Code = "validation"
	CodeUnauthorized      Code = "unauthorized"
	CodeLockHeld          Code = "lock_held"
	CodeLockOwnership     Code = "lock_ownership"
	CodeLockExpired       Code = "lock_expired"
	CodeInvalidTransition Code = "invalid_transition"
	CodeStaleTarget       Code = "stale_target"
	CodeChainIntegrity    Code = "chain_integrity"
	CodePersistence       Code = "persistence"
	CodeTimeout           Code = "timeout"
)

// Error is a coded domain error. Details carries structured context such as
// the current lock holder; it is safe to serialize to callers.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetail returns the error with an extra structured detail attached.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the domain code from an error chain. Unknown errors report
// CodePersistence so infrastructure failures never leak raw messages.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodePersistence
}

// HTTPStatus maps a domain code to its transport status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeLockHeld, CodeStaleTarget:
		return http.StatusConflict
	case CodeLockOwnership, CodeLockExpired:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
