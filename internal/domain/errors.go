package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies domain failures so transports can map them consistently.
type ErrorCode string

const (
	ErrCodeValidation      ErrorCode = "VALIDATION"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyJoined   ErrorCode = "ALREADY_JOINED"
	ErrCodeUnsupportedUnit ErrorCode = "UNSUPPORTED_UNIT"
	ErrCodeUnavailable     ErrorCode = "UNAVAILABLE"
)

// Error represents a request-scoped domain failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validationf builds a VALIDATION error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return NewError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

var (
	ErrChallengeNotFound = NewError(ErrCodeNotFound, "challenge not found")
	ErrInviteNotFound    = NewError(ErrCodeNotFound, "no challenge matches invite code")
	ErrUserNotFound      = NewError(ErrCodeNotFound, "user not found")
	ErrAlreadyJoined     = NewError(ErrCodeAlreadyJoined, "user already joined this challenge")
	// ErrInviteCodeTaken is returned by stores when an invite code collides with an existing challenge.
	ErrInviteCodeTaken = NewError(ErrCodeValidation, "invite code already in use")
	// ErrIdempotencyConflict is returned by stores when the user already
	// appended an activity under the same idempotency key.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

// IsCode reports whether err carries the provided domain code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the domain code from err. Unclassified errors report UNAVAILABLE.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeUnavailable
}

// unavailable classifies storage and collaborator failures; domain errors pass through untouched.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeUnavailable, op, err)
}
