package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/events"
	"github.com/omspatilgit/BolBharat-AI/internal/mode"
	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/observability/metrics"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
)

// SessionLimits defines safety guardrails for a capture session. These
// prevent unbounded resource usage; exceeding a limit downgrades the
// session to batch rather than dropping the capture.
type SessionLimits struct {
	MaxAudioBytes int64         // Max buffered audio per session
	MaxDuration   time.Duration // Max session duration
	MaxPartials   int           // Max partial transcripts per session
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() SessionLimits {
	return SessionLimits{
		MaxAudioBytes: 5 * 1024 * 1024, // ~625 seconds at 8kHz 16-bit mono
		MaxDuration:   5 * time.Minute,
		MaxPartials:   500,
	}
}

// Session manages one capture session. In real-time mode it implements
// stt.Callback, streaming audio to the provider and surfacing partial
// transcripts as speech proceeds. The full capture is buffered regardless
// of mode, so a downgrade to batch never loses audio: the buffered bytes
// are uploaded and queued for a later cycle instead.
type Session struct {
	id        string
	userID    string
	lang      models.Language
	audio     models.AudioMeta
	stream    stt.StreamTranscriber
	selector  *mode.Selector
	queue     *queue.Manager
	blobs     store.BlobStore
	publisher *events.Publisher
	metrics   *metrics.Metrics
	limits    SessionLimits
	logger    zerolog.Logger

	mu           sync.Mutex
	buffer       []byte
	partialCount int
	startTime    time.Time
	finalized    bool
	recordingID  string

	now func() time.Time
}

// NewSession creates a capture session. The startup latency sample decides
// the initial mode; a session that begins above the ceiling starts in
// batch directly.
func NewSession(
	id, userID string,
	lang models.Language,
	audio models.AudioMeta,
	startupLatency, latencyCeiling time.Duration,
	stream stt.StreamTranscriber,
	qm *queue.Manager,
	blobs store.BlobStore,
	publisher *events.Publisher,
	limits SessionLimits,
	logger zerolog.Logger,
) *Session {
	s := &Session{
		id:        id,
		userID:    userID,
		lang:      lang,
		audio:     audio,
		stream:    stream,
		selector:  mode.NewSelector(id, startupLatency, latencyCeiling, logger),
		queue:     qm,
		blobs:     blobs,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		limits:    limits,
		logger:    logger.With().Str("component", "session").Str("sessionId", id).Logger(),
		startTime: time.Now(),
		now:       time.Now,
	}
	s.metrics.RecordSessionStart(s.selector.Mode().String())
	return s
}

// Mode returns the session's current processing mode.
func (s *Session) Mode() mode.Mode {
	return s.selector.Mode()
}

// RecordingID returns the id of the recording this session produced, once
// it has been finalized.
func (s *Session) RecordingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingID
}

// Start begins the provider stream when the session is in real-time mode.
// A batch-mode session only buffers; nothing to start.
func (s *Session) Start(ctx context.Context) error {
	if s.selector.Mode() != mode.ModeRealTime {
		return nil
	}
	return s.stream.Start(ctx, s.lang, s)
}

// Push feeds one audio frame into the session. The frame is always
// buffered; in real-time mode it is also forwarded to the provider, with
// the observed send latency fed to the mode selector. Exceeding a
// guardrail downgrades the session to batch.
func (s *Session) Push(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	s.buffer = append(s.buffer, frame...)
	bytes := int64(len(s.buffer))
	start := s.startTime
	s.mu.Unlock()

	if s.limits.MaxAudioBytes > 0 && bytes > s.limits.MaxAudioBytes {
		s.downgrade(fmt.Sprintf("max audio bytes exceeded: %d > %d", bytes, s.limits.MaxAudioBytes))
		return nil
	}
	if s.limits.MaxDuration > 0 && s.now().Sub(start) > s.limits.MaxDuration {
		s.downgrade(fmt.Sprintf("max duration exceeded: %v", s.limits.MaxDuration))
		return nil
	}

	if s.selector.Mode() != mode.ModeRealTime {
		return nil
	}

	sent := s.now()
	err := s.stream.SendAudio(ctx, frame)
	latency := s.now().Sub(sent)
	s.metrics.SessionLatencyMs.Observe(float64(latency.Milliseconds()))

	if err != nil {
		s.downgrade(fmt.Sprintf("stream send failed: %v", err))
		return nil
	}
	if s.selector.Observe(latency) {
		s.onDowngraded()
	}
	return nil
}

// Close ends the session. A downgraded or batch-mode capture that never
// finalized is uploaded and queued for the next batch cycle here, so the
// audio survives the session.
func (s *Session) Close(ctx context.Context) error {
	defer s.metrics.RecordSessionEnd()

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("stream close failed")
		}
	}

	s.mu.Lock()
	finalized := s.finalized
	buffered := len(s.buffer)
	s.mu.Unlock()

	if finalized {
		return nil
	}
	if buffered == 0 {
		s.logger.Info().Msg("session closed with no audio captured")
		return nil
	}
	return s.finalizeBatch(ctx)
}

// --- stt.Callback implementation ---

// OnPartial surfaces an interim transcript while speech proceeds.
func (s *Session) OnPartial(text string) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.partialCount++
	count := s.partialCount
	s.mu.Unlock()

	if s.limits.MaxPartials > 0 && count > s.limits.MaxPartials {
		s.downgrade(fmt.Sprintf("max partials exceeded: %d > %d", count, s.limits.MaxPartials))
		return
	}

	s.metrics.PartialsEmitted.Inc()
	if s.publisher == nil {
		return
	}
	ev := models.TranscriptPartial{
		EventType:   "transcript.partial",
		RecordingID: s.recordingID,
		UserID:      s.userID,
		SessionID:   s.id,
		Timestamp:   s.now().UnixMilli(),
		Text:        text,
	}
	if ev.RecordingID == "" {
		ev.RecordingID = s.id
	}
	if err := s.publisher.PublishPartial(context.Background(), s.id, ev); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish partial")
	}
}

// OnFinal finalizes the capture: the transcribed segment lands as a
// recording driven straight to its terminal state, confidence rule
// included. Only the first final counts. A session already downgraded
// to batch ignores stream finals entirely; the provider stream keeps
// delivering until close, but its transcript covers only the streamed
// prefix of the capture, so the full buffer is queued at close instead.
func (s *Session) OnFinal(result *models.TranscriptionResult) {
	if s.selector.Mode() != mode.ModeRealTime {
		s.logger.Info().Msg("ignoring stream final after downgrade to batch")
		return
	}
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	capturedAt := s.startTime
	s.mu.Unlock()

	ctx := context.Background()
	rec, err := models.NewRecording(s.userID, capturedAt, s.audio, s.lang)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build recording from session")
		return
	}
	if err := s.queue.Enqueue(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("failed to enqueue session recording")
		return
	}
	s.metrics.RecordEnqueue(false)
	if _, err := s.queue.Claim(ctx, rec.RecordingID); err != nil {
		s.logger.Error().Err(err).Msg("failed to claim session recording")
		return
	}
	final, err := s.queue.RecordResult(ctx, rec.RecordingID, result)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to record session result")
		return
	}

	s.mu.Lock()
	s.recordingID = rec.RecordingID
	s.mu.Unlock()

	s.metrics.RecordOutcome(final.Status.String(), s.now().Sub(capturedAt).Seconds())
	s.publishSessionLifecycle(ctx, final)
	s.logger.Info().
		Str("recordingId", rec.RecordingID).
		Str("status", final.Status.String()).
		Msg("session finalized in real time")
}

// OnError downgrades the session to batch. The buffered capture is kept;
// it will be queued at close instead of lost.
func (s *Session) OnError(err error) {
	s.logger.Warn().Err(err).Msg("stream error")
	s.downgrade(fmt.Sprintf("stream error: %v", err))
}

func (s *Session) downgrade(reason string) {
	if s.selector.Downgrade(reason) {
		s.onDowngraded()
	}
}

func (s *Session) onDowngraded() {
	s.metrics.ModeDowngrades.WithLabelValues(downgradeClass(s.selector.Reason())).Inc()
	s.logger.Info().Str("reason", s.selector.Reason()).Msg("session downgraded to batch")
}

// finalizeBatch uploads the buffered capture and queues it for the next
// batch cycle.
func (s *Session) finalizeBatch(ctx context.Context) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil
	}
	s.finalized = true
	data := s.buffer
	capturedAt := s.startTime
	s.mu.Unlock()

	rec, err := models.NewRecording(s.userID, capturedAt, s.audio, s.lang)
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", s.id, err)
	}

	key := fmt.Sprintf("recordings/%s.%s", rec.RecordingID, rec.Audio.Format)
	loc, err := s.blobs.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("finalize session %s: upload: %w", s.id, err)
	}

	if err := s.queue.Enqueue(ctx, rec); err != nil {
		return fmt.Errorf("finalize session %s: %w", s.id, err)
	}
	s.metrics.RecordEnqueue(false)
	if err := s.queue.AttachBlob(ctx, rec.RecordingID, loc); err != nil {
		return fmt.Errorf("finalize session %s: %w", s.id, err)
	}

	s.mu.Lock()
	s.recordingID = rec.RecordingID
	s.mu.Unlock()

	s.logger.Info().
		Str("recordingId", rec.RecordingID).
		Int("audioBytes", len(data)).
		Msg("session capture queued for batch processing")
	return nil
}

func (s *Session) publishSessionLifecycle(ctx context.Context, rec *models.Recording) {
	if s.publisher == nil {
		return
	}
	ev := models.RecordingLifecycle{
		EventType:   "recording." + strings.ToLower(rec.Status.String()),
		RecordingID: rec.RecordingID,
		UserID:      rec.UserID,
		Timestamp:   s.now().UnixMilli(),
		Status:      rec.Status.String(),
		Attempts:    rec.RetryCount,
		Transcript:  rec.Transcript,
		Reason:      rec.LastError,
	}
	if rec.Confidence != nil {
		ev.Confidence = *rec.Confidence
	}
	if err := s.publisher.PublishLifecycle(ctx, rec.RecordingID, ev); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish lifecycle event")
	}
}

// downgradeClass collapses free-form downgrade reasons into a bounded
// metric label set.
func downgradeClass(reason string) string {
	switch {
	case strings.Contains(reason, "latency"):
		return "latency"
	case strings.HasPrefix(reason, "max audio bytes"):
		return "audio_bytes"
	case strings.HasPrefix(reason, "max duration"):
		return "duration"
	case strings.HasPrefix(reason, "max partials"):
		return "partials"
	case strings.HasPrefix(reason, "stream"):
		return "stream_error"
	}
	return "other"
}
