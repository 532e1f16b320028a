package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned or wrapped values compare equal to the
// predefined sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking lifecycle rejections. These are business-rule outcomes and are never retried.
var (
	ErrInvalidState     = New("INVALID_STATE", http.StatusConflict, "invalid state for requested transition")
	ErrQuotaExhausted   = New("QUOTA_EXHAUSTED", http.StatusConflict, "no remaining sessions on enrollment")
	ErrOutOfValidity    = New("OUT_OF_VALIDITY", http.StatusConflict, "enrollment is not valid today")
	ErrMismatch         = New("TICKET_CLASS_MISMATCH", http.StatusUnprocessableEntity, "enrollment cannot be used for this class")
	ErrDuplicateBooking = New("DUPLICATE_BOOKING", http.StatusConflict, "session already booked by student")
	ErrCapacityExceeded = New("CAPACITY_EXCEEDED", http.StatusConflict, "session is full")
	ErrAlreadyCancelled = New("ALREADY_CANCELLED", http.StatusConflict, "booking already cancelled")
	ErrAlreadyCompleted = New("ALREADY_COMPLETED", http.StatusConflict, "booking already completed")
	ErrSweepInProgress  = New("SWEEP_IN_PROGRESS", http.StatusConflict, "sweep already running")
)

// ErrStorage marks transient persistence failures; callers may retry.
var ErrStorage = &Error{Code: "STORAGE_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "operation failed, please retry", Retryable: true}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Storage wraps a persistence failure as a retryable STORAGE_UNAVAILABLE error.
func Storage(err error, message string) *Error {
	wrapped := Clone(ErrStorage, message)
	wrapped.Err = err
	return wrapped
}
