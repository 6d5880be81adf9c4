package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Details carries
// the conflicting record (busy interval, booked patient) so callers can show
// which rule failed without parsing the message.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
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

// Is matches errors by code so sentinels survive Clone/WithDetails copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Code == t.Code
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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Scheduling domain errors.
var (
	ErrOutOfHours             = New("OUT_OF_HOURS", http.StatusBadRequest, "time is outside office hours (09:00-17:00)")
	ErrInvalidGranularity     = New("INVALID_GRANULARITY", http.StatusBadRequest, "appointments start on the hour or half hour")
	ErrInvalidRange           = New("INVALID_RANGE", http.StatusBadRequest, "end time must be after start time")
	ErrPastDate               = New("PAST_DATE", http.StatusBadRequest, "cannot set busy hours for past dates")
	ErrBusyOverlap            = New("BUSY_OVERLAP", http.StatusConflict, "busy hours overlap with an existing interval")
	ErrDoctorUnavailable      = New("DOCTOR_UNAVAILABLE", http.StatusConflict, "the doctor is not available at this time")
	ErrSlotTaken              = New("SLOT_TAKEN", http.StatusConflict, "this time slot is already booked")
	ErrSlotContended          = New("SLOT_CONTENDED", http.StatusConflict, "slot is currently being booked, please retry")
	ErrCannotExamineCancelled = New("CANNOT_EXAMINE_CANCELLED", http.StatusConflict, "cannot record an examination for a cancelled appointment")
	ErrInvalidState           = New("INVALID_STATE", http.StatusConflict, "operation not allowed in the current appointment state")
)

// NewValidationError returns a VALIDATION_ERROR with a specific message.
func NewValidationError(message string) *Error {
	return New(ErrValidation.Code, ErrValidation.Status, message)
}

// NewInternalError wraps an unexpected failure as an INTERNAL_ERROR.
func NewInternalError(err error) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

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

// WithDetails returns a copy of the error carrying a structured payload.
func WithDetails(err *Error, details interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}
