package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Input validation (never retried, no network call made)
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Payment processor errors (PROCESSOR_*)
	ErrorCodeProcessorNetwork   ErrorCode = "PROCESSOR_NETWORK"
	ErrorCodeProcessorRejected  ErrorCode = "PROCESSOR_REJECTED"
	ErrorCodeProcessorMalformed ErrorCode = "PROCESSOR_MALFORMED"

	// Application backend errors
	ErrorCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// Verification errors
	ErrorCodePaymentNotSuccessful ErrorCode = "PAYMENT_NOT_SUCCESSFUL"
	ErrorCodeReferenceNotFound    ErrorCode = "REFERENCE_NOT_FOUND"

	// Subscription errors (SUB_*)
	ErrorCodeSubscriptionNotFound ErrorCode = "SUB_NOT_FOUND"
	ErrorCodeSubscriptionInactive ErrorCode = "SUB_NOT_ACTIVE"

	// Entitlement errors
	ErrorCodeFeatureForbidden ErrorCode = "FEATURE_FORBIDDEN"

	// Auth errors (AUTH_*)
	ErrorCodeAuthMissing ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid ErrorCode = "AUTH_INVALID"

	// Idempotency (IDEMPOTENCY_*)
	ErrorCodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"

	// Configuration (fatal at startup in production)
	ErrorCodeConfigError ErrorCode = "CONFIG_ERROR"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsRecoverable reports whether the orchestrator may try another path
// after this error. A processor rejection is authoritative: retrying a
// declined card elsewhere changes nothing and risks duplicate attempts.
func IsRecoverable(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeBackendUnavailable, ErrorCodeProcessorNetwork, ErrorCodeProcessorMalformed:
		return true
	default:
		return false
	}
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeSubscriptionNotFound || code == ErrorCodeReferenceNotFound
}

// Structured error instances
var (
	ErrInvalidInput         = NewDomainError(ErrorCodeInvalidInput, "invalid input")
	ErrProcessorNetwork     = NewDomainError(ErrorCodeProcessorNetwork, "payment processor unreachable")
	ErrProcessorRejected    = NewDomainError(ErrorCodeProcessorRejected, "payment rejected by processor")
	ErrProcessorMalformed   = NewDomainError(ErrorCodeProcessorMalformed, "malformed processor response")
	ErrBackendUnavailable   = NewDomainError(ErrorCodeBackendUnavailable, "application backend unavailable")
	ErrPaymentNotSuccessful = NewDomainError(ErrorCodePaymentNotSuccessful, "payment was not successful")
	ErrSubscriptionNotFound = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrAuthMissing          = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid          = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")
	ErrInternalError        = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError        = NewDomainError(ErrorCodeDatabaseError, "database error")
)
