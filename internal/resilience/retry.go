package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures the bounded exponential-backoff executor.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns the standard 3-attempt, 1 second base policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Retrier wraps arbitrary fallible operations with retry.
type Retrier struct {
	policy RetryPolicy
	// sleep is injectable for testing; defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier. Zero policy fields fall back to defaults.
func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return &Retrier{
		policy: policy,
		sleep:  sleepCtx,
	}
}

// WithBudget returns a retrier with the same backoff schedule capped at
// n attempts. n at or above the configured maximum returns the receiver
// unchanged.
func (r *Retrier) WithBudget(n int) *Retrier {
	if n >= r.policy.MaxAttempts {
		return r
	}
	if n < 1 {
		n = 1
	}
	return &Retrier{
		policy: RetryPolicy{MaxAttempts: n, BaseDelay: r.policy.BaseDelay},
		sleep:  r.sleep,
	}
}

// Do runs op up to MaxAttempts times. Delay before attempt k (1-indexed,
// k >= 2) is BaseDelay × 2^(k-2): attempts are spaced base, 2×base,
// 4×base and so on. Non-transient errors return immediately. Exhausting
// the budget surfaces a *RetriesExhaustedError wrapping the last failure.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.BaseDelay << (attempt - 2)
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return last
		}
		if !IsTransient(last) {
			return last
		}
	}
	return &RetriesExhaustedError{Attempts: r.policy.MaxAttempts, Last: last}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AsRetriesExhausted unwraps err into a *RetriesExhaustedError if present.
func AsRetriesExhausted(err error) (*RetriesExhaustedError, bool) {
	var ree *RetriesExhaustedError
	ok := errors.As(err, &ree)
	return ree, ok
}
