package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/observability/metrics"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
)

// CycleConfig tunes when the batch cycle fires.
type CycleConfig struct {
	// BatchSize caps items pulled per cycle.
	BatchSize int
	// CountThreshold fires a cycle early once that many items are pending.
	CountThreshold int
	// Interval fires a cycle once that much time has passed since the
	// previous one, regardless of depth.
	Interval time.Duration
	// ProbeInterval is how often pending depth is checked between cycles.
	ProbeInterval time.Duration
}

// DefaultCycleConfig returns the standard cycle trigger config.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		BatchSize:      100,
		CountThreshold: 100,
		Interval:       5 * time.Second,
		ProbeInterval:  500 * time.Millisecond,
	}
}

// Runner fires batch cycles on whichever trigger comes first: the pending
// item count reaching the threshold, or the interval elapsing since the
// previous cycle.
type Runner struct {
	orch    *Orchestrator
	queue   *queue.Manager
	cfg     CycleConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger

	now func() time.Time
}

// NewRunner creates a batch cycle runner.
func NewRunner(orch *Orchestrator, qm *queue.Manager, cfg CycleConfig, logger zerolog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = cfg.Interval / 10
	}
	return &Runner{
		orch:    orch,
		queue:   qm,
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
		logger:  logger.With().Str("component", "cycle-runner").Logger(),
		now:     time.Now,
	}
}

// Run drives cycles until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	lastCycle := r.now()
	ticker := time.NewTicker(r.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		depth, err := r.pendingDepth(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to probe queue depth")
			continue
		}
		r.metrics.QueueDepth.Set(float64(depth))

		trigger := r.trigger(depth, r.now().Sub(lastCycle))
		if trigger == "" {
			continue
		}
		if _, err := r.RunCycle(ctx, trigger); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Str("trigger", trigger).Msg("cycle failed")
		}
		lastCycle = r.now()
	}
}

// trigger reports which condition fires a cycle, or "" for none.
func (r *Runner) trigger(depth int, sinceLast time.Duration) string {
	switch {
	case depth >= r.cfg.CountThreshold:
		return "threshold"
	case sinceLast >= r.cfg.Interval:
		return "interval"
	}
	return ""
}

// RunCycle pulls one batch and drives each item through processing,
// oldest capture first. A failing item never stops the cycle; processing
// continues with the next.
func (r *Runner) RunCycle(ctx context.Context, trigger string) (int, error) {
	start := r.now()

	items, err := r.queue.NextBatch(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := r.orch.ProcessItem(ctx, item.RecordingID); err != nil {
			r.logger.Error().Err(err).
				Str("recordingId", item.RecordingID).
				Msg("item processing error")
		}
	}

	dur := r.now().Sub(start)
	r.metrics.RecordCycle(trigger, len(items), dur.Seconds())
	r.logger.Debug().
		Str("trigger", trigger).
		Int("batchSize", len(items)).
		Dur("duration", dur).
		Msg("cycle complete")
	return len(items), nil
}

func (r *Runner) pendingDepth(ctx context.Context) (int, error) {
	items, err := r.queue.List(ctx, models.StatusPending, r.cfg.CountThreshold)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
