package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies a class of failure. Codes are stable strings that
// cross the API boundary unchanged.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"

	// Collaborator-reported, never retried.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Invariant violations. The caller must re-read state before retrying.
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeImmutableState ErrorCode = "IMMUTABLE_STATE"

	// Transient conditions, safe to retry after backoff.
	ErrCodeUnavailable           ErrorCode = "UNAVAILABLE"
	ErrCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"

	// Ambiguous outbound outcome. Resolved by the reconciler, never
	// retried blindly by the orchestrator.
	ErrCodeUnknown ErrorCode = "UNKNOWN"

	// Token issuer ran out of generation attempts.
	ErrCodeExhausted ErrorCode = "EXHAUSTED"

	// Giveaway-specific codes carried over the API.
	ErrCodeGiveawayNotFound        ErrorCode = "GIVEAWAY_NOT_FOUND"
	ErrCodeNoActiveGiveaway        ErrorCode = "NO_ACTIVE_GIVEAWAY"
	ErrCodeAccountValidationFailed ErrorCode = "ACCOUNT_VALIDATION_FAILED"
	ErrCodeCannotPublish           ErrorCode = "CANNOT_PUBLISH"
	ErrCodeCannotFinish            ErrorCode = "CANNOT_FINISH"
)

// AppError is the typed error carried through the service. It wraps an
// optional cause and collects structured details for logging and the
// HTTP error body.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failure is transient and a retry after
// backoff may succeed. Ambiguous outcomes are explicitly not retryable.
func (e *AppError) IsRetryable() bool {
	return e.Code == ErrCodeUnavailable || e.Code == ErrCodeDependencyUnavailable
}

// IsAmbiguous reports whether the outcome of the operation is unknown at
// the caller.
func (e *AppError) IsAmbiguous() bool {
	return e.Code == ErrCodeUnknown
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound || e.Code == ErrCodeGiveawayNotFound || e.Code == ErrCodeNoActiveGiveaway
}

// WithDetail attaches structured context to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a new application error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// AsAppError extracts an *AppError from err, unwrapping as needed.
func AsAppError(err error) (*AppError, bool) {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Code returns the error code of err, or ErrCodeInternal when err does
// not carry one.
func Code(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewGiveawayNotFoundError creates a "giveaway not found" error.
func NewGiveawayNotFoundError(giveawayID int64) *AppError {
	return New(ErrCodeGiveawayNotFound, fmt.Sprintf("giveaway not found: %d", giveawayID)).
		WithDetail("giveaway_id", giveawayID)
}

// NewConflictError creates an invariant-violation error.
func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// NewDependencyUnavailableError marks a collaborator as unreachable.
func NewDependencyUnavailableError(collaborator string, err error) *AppError {
	return Wrap(err, ErrCodeDependencyUnavailable, fmt.Sprintf("%s service unavailable", collaborator)).
		WithDetail("collaborator", collaborator)
}
