// Package resilience wraps fallible dependency calls with bounded
// exponential-backoff retry and per-dependency circuit breaking.
package resilience

import (
	"errors"
	"fmt"
)

// Dependency errors are classified before retry decisions are made.
// Transient failures (timeouts, throttling, connectivity) are retried;
// permanent ones (malformed input, permission denied) never are.
var (
	ErrTransient = errors.New("transient dependency error")
	ErrPermanent = errors.New("permanent dependency error")
)

// Transient marks err as retriable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent marks err as non-retriable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Unclassified errors
// are treated as transient so an unexpected failure never strands an item
// without its retry budget. Context cancellation and permanent errors are
// not retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	return true
}

// RetriesExhaustedError surfaces after maxAttempts transient failures,
// wrapping the last underlying failure. It is never swallowed.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}
