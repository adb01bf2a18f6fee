// Package orchestrator drives claimed recordings through transcription to
// a terminal state, and hosts the real-time capture sessions. All status
// mutation goes through the queue manager; this package only decides what
// happens next.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/events"
	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/observability/metrics"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
	"github.com/omspatilgit/BolBharat-AI/internal/resilience"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
)

// Config tunes per-item processing.
type Config struct {
	// MaxRetries caps a recording's transcription attempts before FAILED.
	MaxRetries int
	// AccessWindow bounds the blob access reference handed to the provider.
	AccessWindow time.Duration
	// PollInterval spaces batch job result polls.
	PollInterval time.Duration
}

// DefaultConfig returns the standard processing config.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		AccessWindow: 24 * time.Hour,
		PollInterval: 500 * time.Millisecond,
	}
}

// Breakers groups the per-dependency circuit breakers. One instance per
// dependency, built once at process start and shared by reference across
// every worker.
type Breakers struct {
	Blob *resilience.Breaker
	STT  *resilience.Breaker
}

// NewBreakers builds the standard dependency breaker set.
func NewBreakers(cfg resilience.BreakerConfig) Breakers {
	return Breakers{
		Blob: resilience.NewBreaker("blob-store", cfg),
		STT:  resilience.NewBreaker("stt-provider", cfg),
	}
}

// Orchestrator processes queued recordings.
type Orchestrator struct {
	queue     *queue.Manager
	blobs     store.BlobStore
	batch     stt.BatchTranscriber
	breakers  Breakers
	retrier   *resilience.Retrier
	publisher *events.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	logger    zerolog.Logger

	// now and sleep are injectable for testing.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator over the queue manager and its collaborators.
func New(
	qm *queue.Manager,
	blobs store.BlobStore,
	batch stt.BatchTranscriber,
	breakers Breakers,
	retrier *resilience.Retrier,
	publisher *events.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.AccessWindow <= 0 {
		cfg.AccessWindow = 24 * time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Orchestrator{
		queue:     qm,
		blobs:     blobs,
		batch:     batch,
		breakers:  breakers,
		retrier:   retrier,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		cfg:       cfg,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
		sleep:     resilience.Sleep,
	}
}

// ProcessItem claims one PENDING recording and drives it to an outcome:
// COMPLETED or REVIEW_NEEDED on a usable transcript, PENDING again when a
// transient failure leaves retry budget, FAILED once the budget is spent
// or the failure is permanent. Losing the claim race to another worker is
// not an error.
func (o *Orchestrator) ProcessItem(ctx context.Context, id string) error {
	start := o.now()

	rec, err := o.queue.Claim(ctx, id)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			o.metrics.ClaimRacesLost.Inc()
			return nil
		}
		return err
	}

	logger := o.logger.With().
		Str("recordingId", rec.RecordingID).
		Str("userId", rec.UserID).
		Logger()

	attempts := rec.RetryCount
	budget := o.cfg.MaxRetries - rec.RetryCount
	if budget <= 0 {
		// An earlier pass already spent the full budget, for example a
		// shutdown hand-back after the last attempt. Never attempt again;
		// the count must stay capped at the maximum.
		updated, err := o.queue.RecordFailure(ctx, id, attempts, "retry budget exhausted", true)
		if err != nil {
			return err
		}
		logger.Error().
			Time("timestamp", o.now().UTC()).
			Int("retryCount", attempts).
			Str("cause", "retry budget exhausted").
			Msg("recording failed")
		o.metrics.RecordOutcome(updated.Status.String(), o.now().Sub(start).Seconds())
		o.publishLifecycle(ctx, updated)
		return nil
	}

	var result *models.TranscriptionResult

	rerr := o.retrier.WithBudget(budget).Do(ctx, func(ctx context.Context) error {
		res, terr := o.transcribeOnce(ctx, rec)
		if terr == nil {
			result = res
			return nil
		}
		if errors.Is(terr, resilience.ErrCircuitOpen) {
			// The dependency was never invoked, so no attempt is spent;
			// the failure still feeds retry bookkeeping.
			logger.Warn().Err(terr).Msg("dependency circuit open, attempt not consumed")
			return terr
		}
		attempts++
		logger.Error().
			Time("timestamp", o.now().UTC()).
			Int("attempt", attempts).
			Err(terr).
			Msg("transcription attempt failed")
		return terr
	})

	if rerr == nil {
		final, err := o.queue.RecordResult(ctx, id, result)
		if err != nil {
			// Hand the item back to PENDING so it is not stranded in
			// PROCESSING; Requeue only accepts FAILED recordings.
			if _, herr := o.queue.RecordFailure(ctx, id, attempts, err.Error(), false); herr != nil {
				logger.Error().Err(herr).Msg("failed to return item after result write failure")
			}
			return err
		}
		o.metrics.RecordOutcome(final.Status.String(), o.now().Sub(start).Seconds())
		o.publishLifecycle(ctx, final)
		return nil
	}

	if ctx.Err() != nil {
		// Shutdown mid-item: hand the item back without burning budget.
		if _, err := o.queue.RecordFailure(ctx, id, attempts, rerr.Error(), false); err != nil {
			logger.Error().Err(err).Msg("failed to return item on shutdown")
		}
		return rerr
	}

	final := !resilience.IsTransient(rerr) || attempts >= o.cfg.MaxRetries
	updated, err := o.queue.RecordFailure(ctx, id, attempts, rerr.Error(), final)
	if err != nil {
		return err
	}

	if final {
		logger.Error().
			Time("timestamp", o.now().UTC()).
			Int("retryCount", attempts).
			Str("cause", rerr.Error()).
			Msg("recording failed")
	} else {
		o.metrics.RetriesScheduled.Inc()
		logger.Info().
			Int("retryCount", attempts).
			Msg("recording returned to queue for a later cycle")
	}

	o.metrics.RecordOutcome(updated.Status.String(), o.now().Sub(start).Seconds())
	o.publishLifecycle(ctx, updated)
	return nil
}

// transcribeOnce runs one full batch transcription attempt: presign the
// blob, submit the job, poll to completion. Each dependency call goes
// through its breaker; provider failures come back classified.
func (o *Orchestrator) transcribeOnce(ctx context.Context, rec *models.Recording) (*models.TranscriptionResult, error) {
	var ref store.BlobRef
	err := o.breakerDo(ctx, o.breakers.Blob, func(ctx context.Context) error {
		r, err := o.blobs.Presign(ctx, rec.Blob, o.cfg.AccessWindow)
		if err != nil {
			return resilience.Transient(err)
		}
		ref = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var handle stt.JobHandle
	err = o.breakerDo(ctx, o.breakers.STT, func(ctx context.Context) error {
		h, err := o.batch.SubmitBatch(ctx, ref, rec.Language)
		if err != nil {
			return stt.ClassifyProviderError(err)
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	for {
		var (
			result *models.TranscriptionResult
			done   bool
		)
		err = o.breakerDo(ctx, o.breakers.STT, func(ctx context.Context) error {
			r, d, err := o.batch.PollResult(ctx, handle)
			if err != nil {
				return stt.ClassifyProviderError(err)
			}
			result, done = r, d
			return nil
		})
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
			return nil, resilience.Transient(err)
		}
	}
}

// breakerDo runs op through b, then records breaker gauges and counts
// calls the open breaker rejected without invoking the dependency.
func (o *Orchestrator) breakerDo(ctx context.Context, b *resilience.Breaker, op func(ctx context.Context) error) error {
	err := b.Do(ctx, op)
	o.observeBreakers()
	if errors.Is(err, resilience.ErrCircuitOpen) {
		o.metrics.BreakerShorts.WithLabelValues(b.Name()).Inc()
	}
	return err
}

func (o *Orchestrator) observeBreakers() {
	o.metrics.RecordBreakerState(o.breakers.Blob.Name(), int(o.breakers.Blob.State()))
	o.metrics.RecordBreakerState(o.breakers.STT.Name(), int(o.breakers.STT.State()))
}

// publishLifecycle emits the transition event. Publishing is best-effort;
// a broker failure never fails the item.
func (o *Orchestrator) publishLifecycle(ctx context.Context, rec *models.Recording) {
	if o.publisher == nil {
		return
	}
	ev := models.RecordingLifecycle{
		EventType:   "recording." + strings.ToLower(rec.Status.String()),
		RecordingID: rec.RecordingID,
		UserID:      rec.UserID,
		Timestamp:   o.now().UnixMilli(),
		Status:      rec.Status.String(),
		Attempts:    rec.RetryCount,
		Transcript:  rec.Transcript,
		Reason:      rec.LastError,
	}
	if rec.Confidence != nil {
		ev.Confidence = *rec.Confidence
	}
	if err := o.publisher.PublishLifecycle(ctx, rec.RecordingID, ev); err != nil {
		o.logger.Warn().Err(err).
			Str("recordingId", rec.RecordingID).
			Msg("failed to publish lifecycle event")
	}
}
