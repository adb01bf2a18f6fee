// Package mode decides, per capture session, between real-time streaming
// and batch processing based on live network signal.
package mode

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode is the processing path chosen for a session.
type Mode int

const (
	// ModeRealTime - continuous streaming with partial results surfaced
	// as speech proceeds.
	ModeRealTime Mode = iota
	// ModeBatch - capture completes, is queued and processed on a cycle.
	ModeBatch
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == ModeBatch {
		return "BATCH"
	}
	return "REAL_TIME"
}

// DefaultLatencyCeiling is the observed-latency bound above which a
// real-time session downgrades to batch.
const DefaultLatencyCeiling = 3 * time.Second

// Selector tracks one session's mode. The real-time → batch transition is
// one-directional for the session's remainder, so a flapping network does
// not oscillate the pipeline; a new session re-evaluates fresh.
type Selector struct {
	mu        sync.Mutex
	sessionID string
	ceiling   time.Duration
	mode      Mode
	reason    string
	logger    zerolog.Logger
}

// NewSelector creates a selector for one capture session. The initial mode
// comes from the latency measured at session start.
func NewSelector(sessionID string, startupLatency, ceiling time.Duration, logger zerolog.Logger) *Selector {
	if ceiling <= 0 {
		ceiling = DefaultLatencyCeiling
	}
	s := &Selector{
		sessionID: sessionID,
		ceiling:   ceiling,
		mode:      ModeRealTime,
		logger:    logger.With().Str("component", "mode-selector").Str("sessionId", sessionID).Logger(),
	}
	if startupLatency > ceiling {
		s.mode = ModeBatch
		s.reason = "startup latency above ceiling"
	}
	return s
}

// Mode returns the session's current mode.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Observe feeds a live latency sample. Exceeding the ceiling while in
// real-time mode downgrades the session to batch for its remainder;
// samples after the downgrade never reverse it. Returns true if this
// sample triggered the downgrade.
func (s *Selector) Observe(latency time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeBatch {
		return false
	}
	if latency <= s.ceiling {
		return false
	}

	s.mode = ModeBatch
	s.reason = "observed latency above ceiling"
	s.logger.Info().
		Dur("latency", latency).
		Dur("ceiling", s.ceiling).
		Msg("session downgraded to batch mode")
	return true
}

// Downgrade forces the session to batch for a non-latency reason, e.g. a
// session guardrail tripping. One-directional like Observe.
func (s *Selector) Downgrade(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeBatch {
		return false
	}
	s.mode = ModeBatch
	s.reason = reason
	s.logger.Info().Str("reason", reason).Msg("session downgraded to batch mode")
	return true
}

// Reason reports why the session runs in batch mode, empty while
// real-time.
func (s *Selector) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
