// Package errors defines the structured error type shared by the preview
// pipeline, the message bridge and the command surface.
//
// Component-local conditions (a missing template, a binary bridge frame) are
// built with these constructors, logged and absorbed where they occur. Only
// DisplayFailure is meant to reach the user.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResourceUnavailable ErrorType = "resource_unavailable"
	ErrorTypeMalformedMessage    ErrorType = "malformed_message"
	ErrorTypeDisplayFailure      ErrorType = "display_failure"
	ErrorTypeNetwork             ErrorType = "network"
	ErrorTypeConfig              ErrorType = "config"
	ErrorTypeValidation          ErrorType = "validation"
)

// Common error codes.
const (
	CodeTemplateMissing   = "TEMPLATE_MISSING"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeUnhandledMessage  = "UNHANDLED_MESSAGE_TYPE"
	CodeDisplayRejected   = "DISPLAY_REJECTED"
	CodeBridgeState       = "BRIDGE_STATE"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeInvalidURL        = "INVALID_URL"
	CodeInvalidSource     = "INVALID_SOURCE"
)

// PreviewError is a structured error type with context.
type PreviewError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *PreviewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PreviewError) Is(target error) bool {
	var t *PreviewError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PreviewError) WithContext(key string, value interface{}) *PreviewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// Fields flattens the error context into logger key/value pairs.
func (e *PreviewError) Fields() []interface{} {
	fields := make([]interface{}, 0, 4+2*len(e.Context))
	fields = append(fields, "error_type", string(e.Type), "error_code", e.Code)
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}
	return fields
}

// NewResourceUnavailable creates an error for a template or source that
// cannot be located or read.
func NewResourceUnavailable(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeResourceUnavailable,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMalformedMessage creates an error for a bridge frame that cannot be
// forwarded to the console.
func NewMalformedMessage(message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeMalformedMessage,
		Code:    CodeUnhandledMessage,
		Message: message,
	}
}

// NewDisplayFailure creates an error for a host that could not show the
// rendered document.
func NewDisplayFailure(message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeDisplayFailure,
		Code:    CodeDisplayRejected,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeConfig,
		Code:    CodeInvalidConfig,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// IsType reports whether err, or any error it wraps, is a PreviewError of
// type t.
func IsType(err error, t ErrorType) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// IsResourceUnavailable checks if an error means the content cannot be
// produced right now.
func IsResourceUnavailable(err error) bool {
	return IsType(err, ErrorTypeResourceUnavailable)
}

// IsDisplayFailure checks if an error came from the display step.
func IsDisplayFailure(err error) bool {
	return IsType(err, ErrorTypeDisplayFailure)
}
