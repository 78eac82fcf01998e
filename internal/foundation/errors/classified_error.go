package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is an error with a category, handling hints and context.
type ClassifiedError struct {
	category  ErrorCategory
	fatal     bool
	retryable bool
	message   string
	cause     error
	context   ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.category, e.message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Is reports a match when target is a ClassifiedError with the same category
// and message, so a wrapped copy of a sentinel still matches the sentinel.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// Category returns the error category.
func (e *ClassifiedError) Category() ErrorCategory { return e.category }

// Message returns the message without the cause.
func (e *ClassifiedError) Message() string { return e.message }

// Cause returns the wrapped error, if any.
func (e *ClassifiedError) Cause() error { return e.cause }

// Context returns the attached key/value details.
func (e *ClassifiedError) Context() ErrorContext { return e.context }

// Fatal reports whether the error should stop the process.
func (e *ClassifiedError) Fatal() bool { return e.fatal }

// Retryable reports whether repeating the operation may succeed.
func (e *ClassifiedError) Retryable() bool { return e.retryable }

// IsClassified checks if an error chain contains a ClassifiedError.
func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// AsClassified returns the first ClassifiedError in the chain of err.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory checks if the first classified error in the chain belongs to
// category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if classified, ok := AsClassified(err); ok {
		return classified.category
	}
	return CategoryInternal
}

// CanRetry reports whether err is classified as retryable.
func CanRetry(err error) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.retryable
	}
	return false
}
