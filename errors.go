package gousers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aloks98/gousers/store"
)

// Error codes for categorizing errors.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInvalidBody       = "INVALID_BODY"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeStoreRequired     = "STORE_REQUIRED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeStoreTimeout      = "STORE_TIMEOUT"
	CodeConfigInvalid     = "CONFIG_INVALID"
)

// Client-facing messages. These are the exact strings returned in
// {"error": ...} response bodies.
const (
	MessageValidation   = "Name and email are required."
	MessageInvalidBody  = "Invalid request body."
	MessageUserNotFound = "User not found."
	MessageRateLimited  = "Too many requests."
	MessageUnavailable  = "Service unavailable."
	MessageInternal     = "Internal server error."
)

// Sentinel errors for use with errors.Is().
var (
	// Request errors
	ErrValidation  = errors.New("name and email are required")
	ErrInvalidBody = errors.New("request body is not a valid user object")

	// ErrUserNotFound is the store sentinel, re-exported.
	ErrUserNotFound = store.ErrUserNotFound

	// Rate limit errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Store errors
	ErrStoreRequired    = errors.New("store is required")
	ErrStoreUnavailable = errors.New("store is unavailable")
	ErrStoreTimeout     = errors.New("store operation timed out")

	// Config errors
	ErrConfigInvalid = errors.New("configuration is invalid")
)

// Error is a structured error type that includes an error code and optional wrapped error.
type Error struct {
	Code    string
	Message string
	Err     error

	// Fields lists the JSON names of the fields that failed validation.
	Fields []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code, message, and optional wrapped error.
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError reports missing required fields.
func NewValidationError(fields ...string) *Error {
	return &Error{
		Code:    CodeValidationFailed,
		Message: MessageValidation,
		Err:     ErrValidation,
		Fields:  fields,
	}
}

// NewNotFoundError reports that id matches no stored user.
func NewNotFoundError(id int64) *Error {
	return &Error{
		Code:    CodeUserNotFound,
		Message: fmt.Sprintf("no user with id %d", id),
		Err:     ErrUserNotFound,
	}
}

// IsValidationError returns true if the request failed validation or could not be decoded.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidBody)
}

// IsNotFoundError returns true if the error reports a missing user.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsStoreError returns true if the error came from the storage backend.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTimeout) ||
		errors.Is(err, ErrStoreRequired)
}
