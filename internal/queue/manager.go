// Package queue owns enqueue, status transition, FIFO batch selection and
// result recording for captured recordings. All side effects land in the
// durable store; nothing here caches authoritative status.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

var (
	// ErrConflict - enqueue attempted for a recordingId already present.
	ErrConflict = errors.New("recording already enqueued")
	// ErrAlreadyClaimed - a concurrent worker won the PENDING→PROCESSING
	// race for this item.
	ErrAlreadyClaimed = errors.New("recording already claimed")
)

// DefaultConfidenceThreshold routes completed transcriptions: confidence
// at or above the threshold is COMPLETED, below is REVIEW_NEEDED. The
// boundary is inclusive - exactly 0.7 is accepted, not flagged.
const DefaultConfidenceThreshold = 0.7

// Config tunes the queue manager.
type Config struct {
	ConfidenceThreshold float64
	// Retention is how long terminal queue items stay before the store's
	// TTL prunes them.
	Retention time.Duration
}

// DefaultConfig returns the standard queue settings.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Retention:           7 * 24 * time.Hour,
	}
}

// Manager is the only component that mutates recording status.
type Manager struct {
	store  store.DurableStore
	cfg    Config
	logger zerolog.Logger
	// now is injectable for testing; defaults to time.Now.
	now func() time.Time
}

// NewManager creates a queue manager over the durable store.
func NewManager(st store.DurableStore, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Manager{
		store:  st,
		cfg:    cfg,
		logger: logger.With().Str("component", "queue-manager").Logger(),
		now:    time.Now,
	}
}

// Enqueue inserts a captured recording with status PENDING and queuedAt
// equal to its capture timestamp. Re-delivery of the same recordingId is
// detected via the store's conditional insert and reported as ErrConflict,
// never silently duplicated.
func (m *Manager) Enqueue(ctx context.Context, rec *models.Recording) error {
	if err := rec.Audio.Validate(); err != nil {
		return fmt.Errorf("enqueue %s: %w", rec.RecordingID, err)
	}

	rec.Status = models.StatusPending
	rec.UpdatedAt = m.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	if err := m.store.PutRecording(ctx, rec); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return fmt.Errorf("enqueue %s: %w", rec.RecordingID, ErrConflict)
		}
		return fmt.Errorf("enqueue %s: %w", rec.RecordingID, err)
	}

	m.logger.Info().
		Str("recordingId", rec.RecordingID).
		Str("userId", rec.UserID).
		Time("capturedAt", rec.CapturedAt).
		Msg("recording enqueued")
	return nil
}

// UpdateStatus transitions the recording to newStatus, enforcing the
// legal-transition table. An illegal transition fails with
// *models.InvalidTransitionError and leaves the stored state unchanged.
// A lost optimistic race on a claim maps to ErrAlreadyClaimed.
func (m *Manager) UpdateStatus(ctx context.Context, id string, newStatus models.Status, lastError string) (*models.Recording, error) {
	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateTransition(rec.Status, newStatus); err != nil {
		return nil, err
	}

	prev := rec.Status
	rec.Status = newStatus
	rec.LastError = lastError
	rec.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateRecording(ctx, rec, prev); err != nil {
		if errors.Is(err, store.ErrConditionFailed) && newStatus == models.StatusProcessing {
			return nil, fmt.Errorf("claim %s: %w", id, ErrAlreadyClaimed)
		}
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	if newStatus.IsTerminal() {
		m.expireItem(ctx, id)
	}

	m.logger.Debug().
		Str("recordingId", id).
		Str("from", prev.String()).
		Str("to", newStatus.String()).
		Msg("status transition")
	return rec, nil
}

// Claim attempts the atomic PENDING→PROCESSING transition for an item.
// Exactly one of two racing workers succeeds; the loser gets
// ErrAlreadyClaimed and the item's status is unchanged. An item another
// worker already moved to PROCESSING reports the same error.
func (m *Manager) Claim(ctx context.Context, id string) (*models.Recording, error) {
	rec, err := m.UpdateStatus(ctx, id, models.StatusProcessing, "")
	if err != nil {
		var ite *models.InvalidTransitionError
		if errors.As(err, &ite) && ite.From == models.StatusProcessing {
			return nil, fmt.Errorf("claim %s: %w", id, ErrAlreadyClaimed)
		}
		return nil, err
	}
	return rec, nil
}

// NextBatch returns up to maxSize PENDING items, oldest capture first,
// ties broken by recordingId. Returned items are not locked; callers claim
// them via Claim.
func (m *Manager) NextBatch(ctx context.Context, maxSize int) ([]*models.QueueItem, error) {
	return m.store.QueryByStatus(ctx, models.StatusPending, maxSize)
}

// AttachBlob records the upload location on the recording. Write-once: a
// second attach for the same recording is a conflict.
func (m *Manager) AttachBlob(ctx context.Context, id string, loc models.BlobLocation) error {
	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Blob.IsZero() {
		return fmt.Errorf("attach blob %s: location already set: %w", id, ErrConflict)
	}
	rec.Blob = loc
	rec.UpdatedAt = m.now().UTC()
	return m.store.UpdateRecording(ctx, rec, rec.Status)
}

// RecordResult sets the transcription fields on a PROCESSING recording and
// computes the terminal status from the confidence rule.
func (m *Manager) RecordResult(ctx context.Context, id string, result *models.TranscriptionResult) (*models.Recording, error) {
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("record result %s: %w", id, err)
	}

	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	terminal := models.StatusCompleted
	reason := ""
	if result.Confidence < m.cfg.ConfidenceThreshold {
		terminal = models.StatusReviewNeeded
		reason = fmt.Sprintf("confidence %.6f below threshold %.2f", result.Confidence, m.cfg.ConfidenceThreshold)
	}
	if err := models.ValidateTransition(rec.Status, terminal); err != nil {
		return nil, err
	}

	prev := rec.Status
	conf := result.Confidence
	rec.Status = terminal
	rec.Confidence = &conf
	rec.Transcript = result.Transcript
	rec.Words = result.Words
	rec.LastError = reason
	if result.Language != "" && result.Language != models.LanguageUnknown {
		rec.Language = result.Language
	}
	rec.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateRecording(ctx, rec, prev); err != nil {
		return nil, fmt.Errorf("record result %s: %w", id, err)
	}
	m.expireItem(ctx, id)
	return rec, nil
}

// RecordFailure persists the outcome of a failed processing pass. The
// attempt count and failure cause land on the recording either way; final
// decides between FAILED and a return to PENDING for a later cycle.
func (m *Manager) RecordFailure(ctx context.Context, id string, retryCount int, cause string, final bool) (*models.Recording, error) {
	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	next := models.StatusPending
	if final {
		next = models.StatusFailed
	}
	if err := models.ValidateTransition(rec.Status, next); err != nil {
		return nil, err
	}

	prev := rec.Status
	rec.Status = next
	rec.RetryCount = retryCount
	rec.LastError = cause
	rec.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateRecording(ctx, rec, prev); err != nil {
		return nil, fmt.Errorf("record failure %s: %w", id, err)
	}
	if final {
		m.expireItem(ctx, id)
	}
	return rec, nil
}

// Requeue is the explicit operator-invoked override that returns a FAILED
// recording to PENDING. It bypasses the transition table on purpose,
// resets retryCount to 0 and logs the manual intervention.
func (m *Manager) Requeue(ctx context.Context, id, operator string) (*models.Recording, error) {
	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusFailed {
		return nil, &models.InvalidTransitionError{From: rec.Status, To: models.StatusPending}
	}

	prev := rec.Status
	rec.Status = models.StatusPending
	rec.RetryCount = 0
	rec.LastError = ""
	rec.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateRecording(ctx, rec, prev); err != nil {
		return nil, fmt.Errorf("requeue %s: %w", id, err)
	}

	m.logger.Warn().
		Str("recordingId", id).
		Str("operator", operator).
		Msg("manual requeue override: FAILED -> PENDING, retry count reset")
	return rec, nil
}

// Get returns the recording regardless of status. FAILED and REVIEW_NEEDED
// recordings stay queryable with their failure/quality reason attached.
func (m *Manager) Get(ctx context.Context, id string) (*models.Recording, error) {
	return m.store.GetRecording(ctx, id)
}

// List returns queue items in the given status, oldest capture first.
func (m *Manager) List(ctx context.Context, status models.Status, limit int) ([]*models.QueueItem, error) {
	return m.store.QueryByStatus(ctx, status, limit)
}

func (m *Manager) expireItem(ctx context.Context, id string) {
	if m.cfg.Retention <= 0 {
		return
	}
	if err := m.store.ExpireItem(ctx, id, m.now().Add(m.cfg.Retention)); err != nil {
		// TTL stamping is housekeeping; the transition already succeeded.
		m.logger.Warn().Err(err).Str("recordingId", id).Msg("failed to stamp item TTL")
	}
}
