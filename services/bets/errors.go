package bets

import (
	"errors"
	"fmt"
)

// Validation errors. Always caused by caller input; never retried.
var (
	ErrInvalidCount             = errors.New("invalid number count")
	ErrInvalidRange             = errors.New("number out of range")
	ErrDuplicateNumber          = errors.New("duplicate number")
	ErrInvalidRepeatCount       = errors.New("invalid repeat count")
	ErrEmptyName                = errors.New("group name is empty")
	ErrInvalidEmail             = errors.New("invalid email")
	ErrDuplicateParticipant     = errors.New("duplicate participant")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrInvalidContest           = errors.New("invalid contest number")
)

// Reconciliation errors. The bet stays pending and may be retried.
var (
	ErrNotYetDrawn         = errors.New("contest not yet drawn")
	ErrProviderUnavailable = errors.New("draw result provider unavailable")
	ErrInProgress          = errors.New("reconciliation already in progress")
)

// Store and provider level errors.
var (
	ErrBetNotFound       = errors.New("bet not found")
	ErrAlreadyReconciled = errors.New("bet already reconciled")
	ErrResultNotFound    = errors.New("draw result not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMalformedResult   = errors.New("malformed draw result")
)

var validationErrors = []error{
	ErrInvalidCount, ErrInvalidRange, ErrDuplicateNumber, ErrInvalidRepeatCount,
	ErrEmptyName, ErrInvalidEmail, ErrDuplicateParticipant, ErrInsufficientParticipants,
	ErrInvalidContest,
}

// PersistenceError reports a failed write to the bet store. The bet's prior state is intact.
type PersistenceError struct {
	BetID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist bet %s: %v", e.BetID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidationError reports whether err was caused by invalid caller input.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a reconciliation attempt that failed with err can be retried later.
func IsRetryable(err error) bool {
	var perr *PersistenceError
	return errors.Is(err, ErrNotYetDrawn) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInProgress) ||
		errors.As(err, &perr)
}

// Kind returns a stable machine-readable name for err, suitable for API payloads.
func Kind(err error) string {
	var perr *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCount):
		return "invalid_count"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrDuplicateNumber):
		return "duplicate_number"
	case errors.Is(err, ErrInvalidRepeatCount):
		return "invalid_repeat_count"
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrDuplicateParticipant):
		return "duplicate_participant"
	case errors.Is(err, ErrInsufficientParticipants):
		return "insufficient_participants"
	case errors.Is(err, ErrInvalidContest):
		return "invalid_contest"
	case errors.Is(err, ErrNotYetDrawn):
		return "not_yet_drawn"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	case errors.Is(err, ErrBetNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.As(err, &perr):
		return "persistence_error"
	default:
		return "internal"
	}
}
