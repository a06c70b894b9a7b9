package remote

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated marks a 401/403 from the collaborator. The credential
// is owned by the identity collaborator; the engine never retries these.
var ErrUnauthenticated = errors.New("unauthenticated: credential rejected by collaborator")

// NetworkError is a transient transport failure. Retryable with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteRejectionError is a definitive 4xx refusal (test window closed,
// attempts exhausted, unknown test). Never retried.
type RemoteRejectionError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("remote rejected %s (%d): %s", e.Op, e.StatusCode, e.Reason)
}

// SubmissionFailedError is returned once bounded retries are exhausted.
// The attempt stays in memory with answers intact; the caller decides when
// to retry manually.
type SubmissionFailedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRejection reports whether the collaborator definitively refused.
func IsRejection(err error) bool {
	var re *RemoteRejectionError
	return errors.As(err, &re)
}

// IsSubmissionFailed reports whether retries were exhausted.
func IsSubmissionFailed(err error) bool {
	var se *SubmissionFailedError
	return errors.As(err, &se)
}
