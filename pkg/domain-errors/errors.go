// Package domainerrors defines the typed error taxonomy shared by every core
// service. Services return these as values; transports translate them into
// user-facing responses. Nothing in the core inspects error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers that decide recovery.
type Code string

const (
	// CodeValidation marks malformed input (non-positive amount, empty field).
	CodeValidation Code = "validation"
	// CodeNotFound marks an absent order, user, or seat.
	CodeNotFound Code = "not_found"
	// CodeStateConflict marks a transition attempted from an invalid current
	// state, including double-approval.
	CodeStateConflict Code = "state_conflict"
	// CodeCapacityExhausted marks an allocation attempt with no eligible seat.
	// Retryable once inventory is replenished.
	CodeCapacityExhausted Code = "capacity_exhausted"
	// CodeDecryption marks a corrupt or foreign-key credential payload.
	CodeDecryption Code = "decryption"
	// CodeRateLimited marks a 2FA budget or window violation. Not retryable
	// for that order.
	CodeRateLimited Code = "rate_limited"
	// CodeInternal marks storage or infrastructure failures.
	CodeInternal Code = "internal"
	// CodeTimeout marks an aborted operation whose context expired.
	CodeTimeout Code = "timeout"
)

// Error carries a machine-readable code next to a human-readable message and
// an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, keeping the cause
// reachable through errors.Unwrap.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// produced outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer responds
// with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStateConflict:
		return http.StatusConflict
	case CodeCapacityExhausted:
		return http.StatusConflict
	case CodeDecryption:
		return http.StatusInternalServerError
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
