package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")
	// ErrBusy indicates summary generation is already in progress
	ErrBusy = errors.New("summary generation already in progress")
	// ErrRemote matches every *RemoteError via errors.Is
	ErrRemote = errors.New("remote service error")
	// ErrNoRecords indicates an operation needs record text but none is loaded
	ErrNoRecords = NewValidationError("no records")
)

// ValidationError reports an unmet precondition. The caller must supply input and retry.
type ValidationError struct {
	Reason string
}

// NewValidationError creates a validation error with the given reason
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any validation error
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// RemoteError reports a non-2xx response or transport failure from the remote service
type RemoteError struct {
	Op          string // summarize, chat, explain-term, health
	StatusCode  int    // 0 for transport failures
	Message     string
	RawResponse string // raw model output, when the service returned one
	Err         error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRemote) match any remote error
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
