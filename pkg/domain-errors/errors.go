// Package domainerrors provides coded errors for the naming registry.
//
// Services return these so transports can map failures onto stable,
// client-distinguishable categories: timing errors invite a retry with a
// fresh commit cycle, availability errors mean pick another name, payment
// errors mean send more funds, and authorization or syntax errors are
// permanent for the given input.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for API consumers.
type Code string

const (
	// Commit-reveal protocol errors.
	CodeCommitmentExists   Code = "commitment_exists"
	CodeCommitmentNotFound Code = "commitment_not_found"
	CodeCommitmentTooNew   Code = "commitment_too_new"
	CodeCommitmentExpired  Code = "commitment_expired"

	// Name and lease errors.
	CodeNameInvalid      Code = "name_invalid"
	CodeNameNotAvailable Code = "name_not_available"
	CodeNameNotReserved  Code = "name_not_reserved"
	CodeDurationTooShort Code = "duration_too_short"

	// Payment errors.
	CodeInsufficientPayment Code = "insufficient_payment"
	CodeRefundFailed        Code = "refund_failed"

	// Ambient errors shared by every surface.
	CodeUnauthorized Code = "unauthorized"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a coded error. Wrapped causes stay reachable through errors.Is /
// errors.As via Unwrap.
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

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Wrapf attaches a code and formatted message to an underlying cause.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	for errors.As(err, &coded) {
		if coded.Code == code {
			return true
		}
		err = coded.cause
		coded = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is uncoded.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}
