package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed - calls pass through.
	BreakerClosed BreakerState = iota
	// BreakerOpen - calls fail fast without invoking the dependency.
	BreakerOpen
	// BreakerHalfOpen - a single trial call is allowed through.
	BreakerHalfOpen
)

// String returns the string representation of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ErrCircuitOpen - the breaker is open and the call was not attempted
// against the dependency.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that trips
	// CLOSED → OPEN.
	FailureThreshold int
	// CoolDown is how long the breaker stays OPEN after the last failure
	// before a trial call is allowed.
	CoolDown time.Duration
}

// DefaultBreakerConfig returns the standard 5-failure, 60 second config.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         60 * time.Second,
	}
}

// Breaker protects one external dependency. Bookkeeping is per instance:
// each dependency gets its own breaker, constructed once at process start
// and passed by reference to every caller, so one failing dependency
// cannot block unrelated traffic. State is shared across all concurrent
// callers of that dependency.
//
// State transitions:
//
//	CLOSED → OPEN       consecutive failures reach FailureThreshold
//	OPEN → HALF_OPEN    CoolDown elapsed since the last failure
//	HALF_OPEN → CLOSED  trial call succeeds (failure count resets to 0)
//	HALF_OPEN → OPEN    trial call fails (cool-down timer restarts)
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	// trialInFlight serializes HALF_OPEN probes: only one caller gets the
	// trial, the rest fail fast.
	trialInFlight bool

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewBreaker creates a breaker for the named dependency.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 60 * time.Second
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: BreakerClosed,
		clock: time.Now,
	}
}

// Name returns the protected dependency's name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, accounting for an elapsed cool-down.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.clock().Sub(b.lastFailure) >= b.cfg.CoolDown {
		return BreakerHalfOpen
	}
	return b.state
}

// Do invokes op through the breaker. While OPEN it fails fast with
// ErrCircuitOpen without invoking the dependency.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}

	opErr := op(ctx)
	b.settle(trial, opErr)
	return opErr
}

// admit decides whether a call may proceed; reports whether this call is
// the HALF_OPEN trial.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerOpen:
		if b.clock().Sub(b.lastFailure) < b.cfg.CoolDown {
			return false, ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.trialInFlight = true
		return true, nil
	case BreakerHalfOpen:
		if b.trialInFlight {
			return false, ErrCircuitOpen
		}
		b.trialInFlight = true
		return true, nil
	}
	return false, ErrCircuitOpen
}

func (b *Breaker) settle(trial bool, opErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	}

	if opErr == nil {
		b.failures = 0
		b.state = BreakerClosed
		return
	}

	b.lastFailure = b.clock()
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
	}
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
