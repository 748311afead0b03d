// Package domainerrors carries coded domain errors across layer boundaries.
// Conventionally imported as dErrors.
//
// Services return these (optionally wrapping a cause) so transport layers can
// translate them into protocol responses without string matching. Stores return
// sentinel errors (pkg/platform/sentinel); services translate those into coded
// errors here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The set is closed: adding a code means
// deciding its HTTP mapping in ToHTTPStatus as well.
type Code string

const (
	// CodeValidation covers malformed or missing fields and bad enum values.
	CodeValidation Code = "validation_error"
	// CodeSignature covers missing or non-verifying signatures.
	CodeSignature Code = "signature_error"
	// CodeDuplicate covers receipt_id collisions, including races surfaced as
	// storage uniqueness violations.
	CodeDuplicate Code = "duplicate_error"
	// CodeThreshold covers economic amounts below the configured minimum.
	CodeThreshold Code = "threshold_error"
	// CodeReference covers unresolved external settlement references.
	CodeReference Code = "reference_error"
	// CodeStorage covers persistence failures.
	CodeStorage Code = "storage_error"

	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error with an optional wrapped cause.
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

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so transport layers always have something to map.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
