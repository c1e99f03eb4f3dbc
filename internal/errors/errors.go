// Package errors defines stable error codes for weave failure modes.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// LLMUnavailable indicates the completion endpoint is not reachable
	LLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// LLMMalformedOutput indicates the completion response could not be parsed
	LLMMalformedOutput ErrorCode = "LLM_MALFORMED_OUTPUT"
	// StorageConflict indicates a duplicate-key write was attempted
	StorageConflict ErrorCode = "STORAGE_CONFLICT"
	// ModuleNotFound indicates a module path or id did not resolve
	ModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// DatabaseMissing indicates no .weave database exists for the repo
	DatabaseMissing ErrorCode = "DATABASE_MISSING"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// WeaveError represents a weave error with a stable code and optional cause
type WeaveError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new WeaveError
func New(code ErrorCode, message string, cause error) *WeaveError {
	return &WeaveError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *WeaveError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *WeaveError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *WeaveError) WithDetails(details interface{}) *WeaveError {
	e.Details = details
	return e
}
