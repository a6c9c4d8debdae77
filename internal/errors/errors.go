// Package errors provides a lightweight structured error type (WheelhouseError)
// for category-based classification and exit-code mapping in the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a Wheelhouse error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryGit     ErrorCategory = "git"
	CategoryBackend ErrorCategory = "backend"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryArchive    ErrorCategory = "archive"
	CategoryCache      ErrorCategory = "cache"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// WheelhouseError is a structured error with category, retryability, and context
type WheelhouseError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for WheelhouseError
type ContextFields map[string]any

// Error implements the error interface
func (e *WheelhouseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *WheelhouseError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *WheelhouseError) WithContext(key string, value any) *WheelhouseError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new WheelhouseError
func New(category ErrorCategory, severity ErrorSeverity, message string) *WheelhouseError {
	return &WheelhouseError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new WheelhouseError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *WheelhouseError {
	return &WheelhouseError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// ValidationError creates a new validation error (invalid usage)
func ValidationError(message string) *WheelhouseError {
	return &WheelhouseError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// ConfigError creates a new configuration error
func ConfigError(message string) *WheelhouseError {
	return &WheelhouseError{
		Category:  CategoryConfig,
		Severity:  SeverityError,
		Message:   message,
		Retryable: false,
	}
}

// WrapError wraps an existing error with a new WheelhouseError at error severity
func WrapError(err error, category ErrorCategory, message string) *WheelhouseError {
	return &WheelhouseError{
		Category:  category,
		Severity:  SeverityError,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if whe, ok := err.(*WheelhouseError); ok {
		return whe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a WheelhouseError
func GetCategory(err error) ErrorCategory {
	if whe, ok := err.(*WheelhouseError); ok {
		return whe.Category
	}
	return CategoryInternal
}
