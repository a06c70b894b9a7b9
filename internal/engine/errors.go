package engine

import (
	"errors"
	"fmt"
)

// ===== LOCAL PRECONDITION ERRORS =====
// Rejected synchronously with no state change; never used for control flow
// across the component boundary.

var (
	ErrOutOfScopeAnswer    = errors.New("question does not belong to the active section")
	ErrInvalidAnswer       = errors.New("answer does not match the question's type")
	ErrSectionNotComplete  = errors.New("active section still has unanswered questions")
	ErrSectionFrozen       = errors.New("section already submitted; answers are frozen")
	ErrAlreadySubmitting   = errors.New("submission already in progress")
	ErrAttemptNotActive    = errors.New("attempt is not in an active section")
	ErrAttemptEnded        = errors.New("attempt has ended")
	ErrReviewNotAllowed    = errors.New("only already-submitted sections can be reviewed")
	ErrNothingToRetry      = errors.New("no failed submissions to retry")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptAccessDenied = errors.New("attempt belongs to another student")
)

// StartError is fatal to the attempt: the test is not open, already
// exhausted for this identity, or unknown. Reported to the user, never
// retried.
type StartError struct {
	TestID string
	Reason string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("cannot start attempt for test %s: %s", e.TestID, e.Reason)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// IsStartError reports whether err is a fatal attempt-start refusal.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}
