// Package errors provides structured error handling for tellix operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Request errors.
	CodeMissingParameter     ErrorCode = "MISSING_PARAMETER"
	CodeUnknownAction        ErrorCode = "UNKNOWN_ACTION"
	CodeTargetInvalid        ErrorCode = "TARGET_INVALID"
	CodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"

	// Probe execution errors.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
	CodeBinaryNotFound  ErrorCode = "BINARY_NOT_FOUND"
	CodeOutputParse     ErrorCode = "OUTPUT_PARSE"

	// File system errors.
	CodeFileSystem      ErrorCode = "FILE_SYSTEM"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"
)

// ProbeError represents an error that occurred while handling a probe request.
type ProbeError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ProbeError) WithContext(key string, value interface{}) *ProbeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithOperation records the operation that failed.
func (e *ProbeError) WithOperation(op string) *ProbeError {
	e.Operation = op
	return e
}

// NewProbeError creates a new probe error with the specified code and message.
func NewProbeError(code ErrorCode, message string) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapProbeError wraps an existing error as a probe error.
func WrapProbeError(code ErrorCode, message string, err error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field: %s)", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var probeErr *ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErr.Code
	}
	var configErr *ConfigError
	if stderrors.As(err, &configErr) {
		return configErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsClientError reports whether the error was caused by the caller's request
// rather than by the probing binary or the host.
func IsClientError(err error) bool {
	switch GetCode(err) {
	case CodeValidation, CodeMissingParameter, CodeUnknownAction,
		CodeTargetInvalid, CodeConfirmationRequired:
		return true
	default:
		return false
	}
}

// Message returns the error text without the code prefix, as shown to protocol callers.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var probeErr *ProbeError
	if stderrors.As(err, &probeErr) {
		if probeErr.Cause != nil {
			return probeErr.Message + ": " + probeErr.Cause.Error()
		}
		return probeErr.Message
	}
	var configErr *ConfigError
	if stderrors.As(err, &configErr) {
		if configErr.Cause != nil {
			return configErr.Message + ": " + configErr.Cause.Error()
		}
		return configErr.Message
	}
	return err.Error()
}

// Common error creation functions

// ErrMissingParameter creates an error for a required request parameter.
func ErrMissingParameter(name string) *ProbeError {
	return NewProbeError(CodeMissingParameter, "Missing required parameter: "+name).
		WithContext("parameter", name)
}

// ErrUnknownAction creates an error naming the rejected action and the valid ones.
func ErrUnknownAction(action string, valid []string) *ProbeError {
	quoted := make([]string, len(valid))
	for i, v := range valid {
		quoted[i] = "'" + v + "'"
	}
	msg := fmt.Sprintf("Unknown action: %s. Supported actions are %s", action, joinAlternatives(quoted))
	return NewProbeError(CodeUnknownAction, msg).WithContext("action", action)
}

// ErrInvalidTarget creates an error for a target that is not a host, IP or URL.
func ErrInvalidTarget(target, reason string) *ProbeError {
	return NewProbeError(CodeTargetInvalid, fmt.Sprintf("Invalid target %q: %s", target, reason)).
		WithContext("target", target)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}

func joinAlternatives(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
