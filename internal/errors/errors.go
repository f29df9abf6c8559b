// Package errors provides structured error types for the query router.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryParse     ErrorCategory = "PARSE"
	ErrCategoryTable     ErrorCategory = "TABLE"
	ErrCategorySelection ErrorCategory = "SELECTION"
	ErrCategoryBackend   ErrorCategory = "BACKEND"
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Parse codes
	CodeParseError = "PARSE_ERROR"

	// Table codes
	CodeTableNotFound = "TABLE_NOT_FOUND"

	// Selection codes
	CodeUnsupportedQuery = "UNSUPPORTED_QUERY"

	// Backend codes
	CodeBackendExecution = "BACKEND_EXECUTION"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// RouterError is the structured error type used throughout the system.
type RouterError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *RouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RouterError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *RouterError) Is(target error) bool {
	var t *RouterError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new RouterError.
func New(category ErrorCategory, code, message string) *RouterError {
	return &RouterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new RouterError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *RouterError {
	return &RouterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *RouterError) WithDetails(details map[string]interface{}) *RouterError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a RouterError.
func GetCategory(err error) ErrorCategory {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a RouterError.
func GetCode(err error) string {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. A backend execution
// failure is retryable because the caller may re-run the query on another
// backend; everything else is final for the query.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryBackend && code == CodeBackendExecution
}

// Convenience constructors for common errors.

// NewParseError reports malformed SQL. Fatal: the query aborts before
// analysis.
func NewParseError(message string, cause error) *RouterError {
	return Wrap(ErrCategoryParse, CodeParseError, message, cause)
}

// NewTableNotFound reports a missing table root, the pruner's only hard
// failure.
func NewTableNotFound(table string) *RouterError {
	e := New(ErrCategoryTable, CodeTableNotFound, fmt.Sprintf("table root not found: %s", table))
	return e.WithDetails(map[string]interface{}{"table": table})
}

// NewUnsupportedQuery reports that no backend candidate supports the query's
// required features.
func NewUnsupportedQuery(message string) *RouterError {
	return New(ErrCategorySelection, CodeUnsupportedQuery, message)
}

// NewBackendError wraps a delegated execution failure, tagged with the
// backend that failed so the caller may retry with another.
func NewBackendError(backend string, cause error) *RouterError {
	e := Wrap(ErrCategoryBackend, CodeBackendExecution,
		fmt.Sprintf("backend %s execution failed", backend), cause)
	return e.WithDetails(map[string]interface{}{"backend": backend})
}

// NewConfigError reports invalid configuration.
func NewConfigError(message string) *RouterError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *RouterError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
