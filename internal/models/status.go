package models

import "fmt"

// Status represents the lifecycle state of a recording.
type Status string

const (
	// StatusPending - Recording is queued, waiting to be claimed.
	StatusPending Status = "PENDING"
	// StatusProcessing - Recording has been claimed by a worker.
	StatusProcessing Status = "PROCESSING"
	// StatusCompleted - Transcription succeeded with acceptable confidence.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed - Retries exhausted with no usable transcript.
	// This is a terminal state. Failures are never silently discarded.
	StatusFailed Status = "FAILED"
	// StatusReviewNeeded - A transcript exists but its confidence fell
	// below the quality threshold. Terminal, but distinguishable from FAILED.
	StatusReviewNeeded Status = "REVIEW_NEEDED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is terminal
// (COMPLETED, FAILED or REVIEW_NEEDED).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReviewNeeded
}

// Valid returns true if s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusReviewNeeded:
		return true
	}
	return false
}

// InvalidTransitionError reports an attempted illegal status change.
// The prior state is left unchanged by the caller.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// transitions is the legal-transition table.
//
//	PENDING → PROCESSING
//	PROCESSING → PENDING (transient failure, returned for a later cycle)
//	PROCESSING → {COMPLETED, FAILED, REVIEW_NEEDED}
//
// Terminal states have no outgoing transitions here. FAILED → PENDING
// exists only as the operator-invoked requeue, which bypasses this table
// on purpose and logs the manual override.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusPending, StatusCompleted, StatusFailed, StatusReviewNeeded},
}

// CanTransition returns true if from → to is in the legal-transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError if from → to is not
// a legal status change, nil otherwise.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
