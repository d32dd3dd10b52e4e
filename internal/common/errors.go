package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Stage code matches on these with errors.Is; nothing
// crosses a stage boundary as a raw error.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFetch          = errors.New("fetch failed")
	ErrFetchBlocked   = errors.New("fetch blocked")
	ErrEmptyContent   = errors.New("empty content")
	ErrParse          = errors.New("json repair exhausted")
	ErrSchemaMismatch = errors.New("parsed json has wrong shape")
	ErrPersistence    = errors.New("storage failure")
	ErrUsageExceeded  = errors.New("daily api usage limit reached")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Retryable reports whether a job failure caused by err should be re-queued.
// Parse and shape failures are deterministic for a given input, so retrying
// would reproduce the same failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrParse) || errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrInvalidInput) {
		return false
	}
	return true
}
