package gamification

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a submission, activity or learner does not exist.
	ErrNotFound = errors.New("not found")
	// ErrWindowClosed indicates a submission attempt outside the activity window.
	ErrWindowClosed = errors.New("activity submission window is closed")
	// ErrInvalidScore indicates an approval score outside [0, maxScore].
	ErrInvalidScore = errors.New("score outside the allowed range")
	// ErrIllegalTransition indicates the event is not allowed from the current status.
	ErrIllegalTransition = errors.New("illegal submission status transition")
	// ErrAlreadyApproved indicates a resubmission attempt on an approved submission.
	ErrAlreadyApproved = errors.New("submission already approved")
	// ErrConcurrentModification indicates the submission changed between read and write.
	ErrConcurrentModification = errors.New("submission was modified concurrently")
	// ErrDecisionMismatch indicates an idempotency token was reused with a different payload.
	ErrDecisionMismatch = errors.New("decision id already used for a different decision")
	// ErrStorageFailure indicates the persistence layer failed. Retrying is safe.
	ErrStorageFailure = errors.New("storage failure")
)

// StorageFailure wraps a persistence error so that it matches ErrStorageFailure
// while keeping the underlying cause inspectable.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageFailure, err))
}

