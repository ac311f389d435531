package hevy

import "fmt"

// AuthError means the API rejected the configured credential (401/403).
// Fatal to the run; never retried automatically.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("hevy: credential rejected (status %d)", e.Status)
}

// TransientError covers network failures, timeouts, and 5xx responses.
// The operator may re-trigger the sync; committed progress is kept.
type TransientError struct {
	Status int // 0 for network-level failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hevy: transient failure: %v", e.Err)
	}
	return fmt.Sprintf("hevy: server error (status %d)", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ProtocolError means the response (or a single record within it) did not
// match any shape this client understands. Not retryable.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hevy: protocol error: %s: %v", e.Detail, e.Err)
	}
	return "hevy: protocol error: " + e.Detail
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError means a record decoded fine but violates a data
// invariant (negative weight, end before start). The record is skipped
// and counted in the run's error list.
type ValidationError struct {
	SessionID string
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hevy: invalid session %s: %s", e.SessionID, e.Detail)
}
