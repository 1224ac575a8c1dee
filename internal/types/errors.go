// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrResultNotFound means the agent has not produced a result yet.
	ErrResultNotFound = errors.New("agent result not found")

	// ErrSessionNotFound means no campaign run matches the given id.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError rejects invalid caller input before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientFetchError wraps a poll failure. It is retried on the next
// tick and surfaced only as a connectivity warning.
type TransientFetchError struct {
	Agent string
	Err   error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s result: %v", e.Agent, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// SubmissionError wraps a failed external action. Any optimistic local
// change is rolled back before it is surfaced.
type SubmissionError struct {
	Action string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Action, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a caller-input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
