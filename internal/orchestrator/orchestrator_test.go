package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/observability/metrics"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
	"github.com/omspatilgit/BolBharat-AI/internal/resilience"
	"github.com/omspatilgit/BolBharat-AI/internal/store/memory"
	"github.com/omspatilgit/BolBharat-AI/internal/stt/mock"
)

type fixture struct {
	queue *queue.Manager
	blobs *memory.Blobs
	batch *mock.Batch
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	qm := queue.NewManager(memory.New(), queue.DefaultConfig(), zerolog.Nop())
	blobs := memory.NewBlobs("test-recordings")
	batch := mock.NewBatch()
	retrier := resilience.NewRetrier(resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	orch := New(qm, blobs, batch, NewBreakers(resilience.DefaultBreakerConfig()), retrier, nil, DefaultConfig(), zerolog.Nop())
	orch.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return &fixture{queue: qm, blobs: blobs, batch: batch, orch: orch}
}

func (f *fixture) enqueueWithBlob(t *testing.T, capturedAt time.Time) *models.Recording {
	t.Helper()
	ctx := context.Background()

	rec, err := models.NewRecording("user-1", capturedAt, models.AudioMeta{
		DurationSec:  4,
		SampleRateHz: 16000,
		Channels:     1,
		Format:       models.FormatWAV,
	}, models.LanguageHindi)
	if err != nil {
		t.Fatalf("new recording: %v", err)
	}
	if err := f.queue.Enqueue(ctx, rec); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	loc, err := f.blobs.Put(ctx, "recordings/"+rec.RecordingID+".wav", []byte("audio"))
	if err != nil {
		t.Fatalf("blob put: %v", err)
	}
	if err := f.queue.AttachBlob(ctx, rec.RecordingID, loc); err != nil {
		t.Fatalf("attach blob: %v", err)
	}
	return rec
}

func TestProcessItem_HighConfidenceCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.Result = &models.TranscriptionResult{
		Transcript: "namaste mujhe madad chahiye",
		Confidence: 0.85,
		Words: []models.WordDetail{
			{Word: "namaste", StartOffset: 0, EndOffset: 400 * time.Millisecond, Confidence: 0.9},
			{Word: "mujhe", StartOffset: 500 * time.Millisecond, EndOffset: 800 * time.Millisecond, Confidence: 0.85},
		},
		Language: models.LanguageHindi,
	}

	rec := f.enqueueWithBlob(t, time.Now().Add(-time.Minute))
	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, err := f.queue.Get(ctx, rec.RecordingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.Confidence == nil || *got.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got.Confidence)
	}
	if got.Transcript == "" || len(got.Words) != 2 {
		t.Errorf("transcript outcome not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("updatedAt should advance past createdAt on completion")
	}
}

func TestProcessItem_LowConfidenceNeedsReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.Result = &models.TranscriptionResult{
		Transcript: "dhanyavad bahut shukriya",
		Confidence: 0.62,
		Language:   models.LanguageHindi,
	}

	rec := f.enqueueWithBlob(t, time.Now())
	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusReviewNeeded {
		t.Errorf("status = %s, want REVIEW_NEEDED", got.Status)
	}
	if got.LastError == "" {
		t.Error("review-needed recording must keep its quality reason")
	}
	if got.Transcript == "" {
		t.Error("below-threshold transcript must still be persisted")
	}
}

func TestProcessItem_TransientFailuresExhaustBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.FailSubmits(3, errors.New("connection reset"))
	rec := f.enqueueWithBlob(t, time.Now())

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.RetryCount != 3 {
		t.Errorf("retryCount = %d, want 3", got.RetryCount)
	}
	if got.LastError == "" {
		t.Error("failed recording must keep its failure reason")
	}
	if f.batch.SubmitCalls != 3 {
		t.Errorf("submit calls = %d, want 3", f.batch.SubmitCalls)
	}
}

func TestProcessItem_PermanentFailureFailsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.FailSubmits(1, status.Error(codes.InvalidArgument, "unsupported audio encoding"))
	rec := f.enqueueWithBlob(t, time.Now())

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", got.RetryCount)
	}
	if f.batch.SubmitCalls != 1 {
		t.Errorf("permanent error must not be retried, submit calls = %d", f.batch.SubmitCalls)
	}
}

func TestProcessItem_TransientThenSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.FailSubmits(1, errors.New("i/o timeout"))
	rec := f.enqueueWithBlob(t, time.Now())

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if !got.Status.IsTerminal() || got.Status == models.StatusFailed {
		t.Errorf("status = %s, want a successful terminal state", got.Status)
	}
	if f.batch.SubmitCalls != 2 {
		t.Errorf("submit calls = %d, want 2", f.batch.SubmitCalls)
	}
}

func TestProcessItem_CircuitOpenDoesNotConsumeAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Trip the provider breaker before the item runs.
	breaker := resilience.NewBreaker("stt-provider", resilience.BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	_ = breaker.Do(ctx, func(ctx context.Context) error { return errors.New("down") })
	f.orch.breakers.STT = breaker

	rec := f.enqueueWithBlob(t, time.Now())
	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING for a later cycle", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("retryCount = %d, circuit-open failures must not consume attempts", got.RetryCount)
	}
	if f.batch.SubmitCalls != 0 {
		t.Errorf("open breaker must not invoke the provider, submit calls = %d", f.batch.SubmitCalls)
	}
}

func TestProcessItem_ResumedPassCapsRetryBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An earlier pass already consumed one attempt before handing the
	// item back to PENDING.
	rec := f.enqueueWithBlob(t, time.Now())
	if _, err := f.queue.Claim(ctx, rec.RecordingID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.queue.RecordFailure(ctx, rec.RecordingID, 1, "stt unavailable", false); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	f.batch.FailSubmits(10, errors.New("connection reset"))
	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.RetryCount != 3 {
		t.Errorf("retryCount = %d, must never exceed the maximum of 3", got.RetryCount)
	}
	if f.batch.SubmitCalls != 2 {
		t.Errorf("submit calls = %d, want 2 with one attempt already spent", f.batch.SubmitCalls)
	}
}

func TestProcessItem_SpentBudgetFailsWithoutAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.enqueueWithBlob(t, time.Now())
	if _, err := f.queue.Claim(ctx, rec.RecordingID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.queue.RecordFailure(ctx, rec.RecordingID, 3, "stt unavailable", false); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.RetryCount != 3 {
		t.Errorf("retryCount = %d, want 3", got.RetryCount)
	}
	if f.batch.SubmitCalls != 0 {
		t.Errorf("submit calls = %d, an item with no budget left must not be attempted", f.batch.SubmitCalls)
	}
}

func TestProcessItem_ResultWriteFailureReturnsItemToQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A result the queue manager rejects leaves the item claimed unless
	// the orchestrator hands it back.
	f.batch.Result = &models.TranscriptionResult{
		Transcript: "namaste",
		Confidence: 1.5,
	}
	rec := f.enqueueWithBlob(t, time.Now())

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err == nil {
		t.Fatal("expected an error from the rejected result")
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING so a later cycle can pick it up", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("retryCount = %d, a result write failure is not a transcription attempt", got.RetryCount)
	}
}

func TestProcessItem_OpenBreakerShortCircuitsAreCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	breaker := resilience.NewBreaker("stt-provider", resilience.BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	_ = breaker.Do(ctx, func(ctx context.Context) error { return errors.New("down") })
	f.orch.breakers.STT = breaker

	shorts := metrics.DefaultMetrics.BreakerShorts.WithLabelValues("stt-provider")
	before := testutil.ToFloat64(shorts)

	rec := f.enqueueWithBlob(t, time.Now())
	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	if got := testutil.ToFloat64(shorts) - before; got != 3 {
		t.Errorf("breaker shorts = %v, want one per rejected attempt (3)", got)
	}
}

func TestProcessItem_LostClaimRaceIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.enqueueWithBlob(t, time.Now())
	if _, err := f.queue.Claim(ctx, rec.RecordingID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("lost race should be a no-op, got %v", err)
	}
	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if got.Status != models.StatusProcessing {
		t.Errorf("status = %s, a lost race must leave the winner's claim intact", got.Status)
	}
	if f.batch.SubmitCalls != 0 {
		t.Errorf("submit calls = %d, want 0", f.batch.SubmitCalls)
	}
}

func TestProcessItem_PollsUntilJobDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.batch.PollsUntilDone = 3
	rec := f.enqueueWithBlob(t, time.Now())

	if err := f.orch.ProcessItem(ctx, rec.RecordingID); err != nil {
		t.Fatalf("processItem: %v", err)
	}

	got, _ := f.queue.Get(ctx, rec.RecordingID)
	if !got.Status.IsTerminal() {
		t.Errorf("status = %s, want terminal", got.Status)
	}
	if f.batch.PollCalls != 4 {
		t.Errorf("poll calls = %d, want 4", f.batch.PollCalls)
	}
}
