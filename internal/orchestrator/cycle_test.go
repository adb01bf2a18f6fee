package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
)

func newRunner(t *testing.T, f *fixture, cfg CycleConfig) *Runner {
	t.Helper()
	return NewRunner(f.orch, f.queue, cfg, zerolog.Nop())
}

func TestTrigger_WhicheverComesFirst(t *testing.T) {
	f := newFixture(t)
	r := newRunner(t, f, CycleConfig{CountThreshold: 100, Interval: 5 * time.Second})

	tests := []struct {
		name      string
		depth     int
		sinceLast time.Duration
		want      string
	}{
		{name: "neither condition met", depth: 10, sinceLast: time.Second, want: ""},
		{name: "count threshold reached", depth: 100, sinceLast: time.Second, want: "threshold"},
		{name: "interval elapsed", depth: 10, sinceLast: 5 * time.Second, want: "interval"},
		{name: "threshold wins when both fire", depth: 150, sinceLast: 10 * time.Second, want: "threshold"},
		{name: "empty queue waits for items", depth: 0, sinceLast: time.Second, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.trigger(tt.depth, tt.sinceLast); got != tt.want {
				t.Errorf("trigger(%d, %v) = %q, want %q", tt.depth, tt.sinceLast, got, tt.want)
			}
		})
	}
}

func TestRunCycle_DrainsOldestFirst(t *testing.T) {
	f := newFixture(t)
	r := newRunner(t, f, DefaultCycleConfig())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		rec := f.enqueueWithBlob(t, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, rec.RecordingID)
	}

	n, err := r.RunCycle(ctx, "interval")
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if n != 3 {
		t.Errorf("cycle processed %d items, want 3", n)
	}
	for _, id := range ids {
		got, err := f.queue.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if !got.Status.IsTerminal() {
			t.Errorf("recording %s left in %s after cycle", id, got.Status)
		}
	}
}

func TestRunCycle_ContinuesPastFailingItem(t *testing.T) {
	f := newFixture(t)
	r := newRunner(t, f, DefaultCycleConfig())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	bad := f.enqueueWithBlob(t, base)
	good := f.enqueueWithBlob(t, base.Add(time.Minute))

	// Oldest item hits a permanent provider rejection.
	f.batch.FailSubmits(1, status.Error(codes.InvalidArgument, "corrupt audio"))

	if _, err := r.RunCycle(ctx, "interval"); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	badRec, _ := f.queue.Get(ctx, bad.RecordingID)
	if badRec.Status != models.StatusFailed {
		t.Errorf("bad item status = %s, want FAILED", badRec.Status)
	}
	goodRec, _ := f.queue.Get(ctx, good.RecordingID)
	if goodRec.Status == models.StatusFailed || !goodRec.Status.IsTerminal() {
		t.Errorf("good item status = %s, failure of a peer must not block it", goodRec.Status)
	}
}

func TestRunCycle_RespectsBatchSize(t *testing.T) {
	f := newFixture(t)
	r := newRunner(t, f, CycleConfig{BatchSize: 2, CountThreshold: 100, Interval: 5 * time.Second})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		f.enqueueWithBlob(t, base.Add(time.Duration(i)*time.Minute))
	}

	n, err := r.RunCycle(ctx, "interval")
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if n != 2 {
		t.Errorf("cycle pulled %d items, want 2", n)
	}

	pending, err := f.queue.List(ctx, models.StatusPending, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("%d items left pending, want 2", len(pending))
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	r := newRunner(t, f, CycleConfig{ProbeInterval: time.Millisecond, Interval: time.Millisecond, CountThreshold: 100})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
