// Package errors provides typed errors for agent-audit
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a configuration loading error
	ErrConfig ErrorType = iota
	// ErrValidation indicates invalid configuration values
	ErrValidation
	// ErrIO indicates a log directory or log file failure
	ErrIO
	// ErrEncode indicates an audit entry could not be serialized
	ErrEncode
	// ErrProtocol indicates a malformed host envelope
	ErrProtocol
	// ErrPlugin indicates a plugin failed to initialize or handle a hook
	ErrPlugin
)

// AuditError is the base error type for all agent-audit errors
type AuditError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *AuditError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", errorTypeString(e.Type), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", errorTypeString(e.Type), e.Message)
}

// Unwrap returns the underlying cause
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// New creates a new AuditError
func New(errType ErrorType, message string, cause error) *AuditError {
	return &AuditError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *AuditError) WithContext(key string, value interface{}) *AuditError {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var auditErr *AuditError
	if err == nil {
		return false
	}
	if errors.As(err, &auditErr) {
		return auditErr.Type == errType
	}
	return false
}

// IsSwallowed returns true if the error is absorbed where it occurs and
// must never reach the host runtime.
func IsSwallowed(err error) bool {
	var auditErr *AuditError
	if !errors.As(err, &auditErr) {
		return false
	}

	switch auditErr.Type {
	case ErrIO, ErrEncode:
		return true
	default:
		return false
	}
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrValidation:
		return "VALIDATION"
	case ErrIO:
		return "IO"
	case ErrEncode:
		return "ENCODE"
	case ErrProtocol:
		return "PROTOCOL"
	case ErrPlugin:
		return "PLUGIN"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *AuditError {
	return New(ErrConfig, message, cause)
}

// ValidationError creates a validation error
func ValidationError(message string, cause error) *AuditError {
	return New(ErrValidation, message, cause)
}

// IOError creates a log I/O error
func IOError(message string, cause error) *AuditError {
	return New(ErrIO, message, cause)
}

// EncodeError creates a serialization error
func EncodeError(message string, cause error) *AuditError {
	return New(ErrEncode, message, cause)
}

// ProtocolError creates a host protocol error
func ProtocolError(message string, cause error) *AuditError {
	return New(ErrProtocol, message, cause)
}

// PluginError creates a plugin error
func PluginError(message string, cause error) *AuditError {
	return New(ErrPlugin, message, cause)
}
