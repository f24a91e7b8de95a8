package llm

import (
	"errors"
	"fmt"
)

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// InvalidOutputError reports a model reply that is not JSON or does not
// match the expected schema. Content holds the raw reply.
type InvalidOutputError struct {
	Content string
	Reason  string
	err     error
}

func (e *InvalidOutputError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("invalid model output: %s: %v", e.Reason, e.err)
	}
	return "invalid model output: " + e.Reason
}

func (e *InvalidOutputError) Unwrap() error {
	return e.err
}

// IsInvalidOutput reports whether err is an InvalidOutputError.
func IsInvalidOutput(err error) bool {
	var invalid *InvalidOutputError
	return errors.As(err, &invalid)
}
