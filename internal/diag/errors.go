package diag

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies fatal build errors.
type ErrorCategory string

const (
	CategoryEngine     ErrorCategory = "engine"
	CategoryParse      ErrorCategory = "parse"
	CategoryExport     ErrorCategory = "export"
	CategoryValidation ErrorCategory = "validation"
	CategoryInternal   ErrorCategory = "internal"
)

// ContextFields carries structured context for Error.
type ContextFields map[string]any

// Error is a fatal, structured build error. It aborts one page, never the
// whole project.
type Error struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Cause    error         `json:"-"`
	Context  ContextFields `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// Fatal creates a new Error.
func Fatal(category ErrorCategory, message string) *Error {
	return &Error{Category: category, Message: message}
}

// Wrap creates an Error around cause.
func Wrap(cause error, category ErrorCategory, message string) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// IsCategory reports whether err (or anything it wraps) is an Error of the
// given category.
func IsCategory(err error, category ErrorCategory) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == category
	}
	return false
}
