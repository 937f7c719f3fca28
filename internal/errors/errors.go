// Package errors provides a lightweight structured error type (PagePubError)
// for category-based classification and retry semantics in the publish
// pipeline and its HTTP boundary.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a pagepub error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"

	// External system integration errors
	CategoryNetwork  ErrorCategory = "network"
	CategoryForge    ErrorCategory = "forge"
	CategoryGenerate ErrorCategory = "generate"
	CategoryNotify   ErrorCategory = "notify"

	// Pipeline and infrastructure errors
	CategoryPublish  ErrorCategory = "publish"
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

// PagePubError is a structured error with category, retryability, and context
type PagePubError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PagePubError
type ContextFields map[string]any

// Error implements the error interface
func (e *PagePubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PagePubError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PagePubError) WithContext(key string, value any) *PagePubError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PagePubError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PagePubError {
	return &PagePubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new PagePubError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PagePubError {
	return &PagePubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// Retryable creates a new retryable PagePubError
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *PagePubError {
	return &PagePubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// WrapRetryable creates a new retryable PagePubError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *PagePubError {
	return &PagePubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := err.(*PagePubError); ok {
		return pe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if pe, ok := err.(*PagePubError); ok {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PagePubError
func GetCategory(err error) ErrorCategory {
	if pe, ok := err.(*PagePubError); ok {
		return pe.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error (400 Bad Request)
func ValidationError(message string) *PagePubError {
	return &PagePubError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// WrapError wraps an existing error with a new PagePubError
func WrapError(err error, category ErrorCategory, message string) *PagePubError {
	return &PagePubError{
		Category:  category,
		Severity:  SeverityError,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}
