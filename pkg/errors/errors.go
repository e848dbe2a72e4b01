package errors

import (
	"fmt"
)

// ErrorCategory represents the category of processor error for handling
type ErrorCategory string

const (
	CategoryDeclined          ErrorCategory = "declined"
	CategoryInsufficientFunds ErrorCategory = "insufficient_funds"
	CategoryInvalidCard       ErrorCategory = "invalid_card"
	CategoryExpiredCard       ErrorCategory = "expired_card"
	CategoryFraud             ErrorCategory = "fraud"
	CategorySystemError       ErrorCategory = "system_error"
	CategoryNetworkError      ErrorCategory = "network_error"
	CategoryInvalidRequest    ErrorCategory = "invalid_request"
	CategoryMalformed         ErrorCategory = "malformed_response"
)

// ProcessorError represents a payment processor error with detailed context
type ProcessorError struct {
	Code             string
	Message          string
	ProcessorMessage string
	IsRetriable      bool
	Category         ErrorCategory
	Details          map[string]interface{}
}

func (e *ProcessorError) Error() string {
	if e.ProcessorMessage != "" {
		return fmt.Sprintf("%s: %s (processor: %s)", e.Code, e.Message, e.ProcessorMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewProcessorError creates a new processor error
func NewProcessorError(code, message string, category ErrorCategory, retriable bool) *ProcessorError {
	return &ProcessorError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Details:     make(map[string]interface{}),
	}
}

// WithProcessorMessage attaches the processor's own message
func (e *ProcessorError) WithProcessorMessage(msg string) *ProcessorError {
	e.ProcessorMessage = msg
	return e
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
