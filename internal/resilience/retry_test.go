package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSleeper records requested delays without waiting.
func fakeSleeper(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrier_GeometricBackoffAndExhaustion(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})
	var delays []time.Duration
	r.sleep = fakeSleeper(&delays)

	boom := errors.New("connection reset")
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Transient(boom)
	})

	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}

	ree, ok := AsRetriesExhausted(err)
	if !ok {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if ree.Attempts != 3 {
		t.Errorf("expected 3 recorded attempts, got %d", ree.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Error("underlying failure must not be swallowed")
	}
}

func TestRetrier_SucceedsMidway(t *testing.T) {
	r := NewRetrier(DefaultRetryPolicy())
	var delays []time.Duration
	r.sleep = fakeSleeper(&delays)

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return Transient(errors.New("throttled"))
		}
		return nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if len(delays) != 1 {
		t.Errorf("expected 1 delay, got %v", delays)
	}
}

func TestRetrier_PermanentErrorNotRetried(t *testing.T) {
	r := NewRetrier(DefaultRetryPolicy())
	var delays []time.Duration
	r.sleep = fakeSleeper(&delays)

	malformed := Permanent(errors.New("malformed audio"))
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return malformed
	})

	if attempts != 1 {
		t.Errorf("permanent error must not be retried, got %d attempts", attempts)
	}
	if _, exhausted := AsRetriesExhausted(err); exhausted {
		t.Error("permanent error must not be reported as exhausted retries")
	}
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("expected permanent classification preserved, got %v", err)
	}
	if len(delays) != 0 {
		t.Errorf("no delay expected, got %v", delays)
	}
}

func TestRetrier_ContextCancelStopsRetry(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Transient(errors.New("timeout"))
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt after cancellation, got %d", attempts)
	}
	if err == nil {
		t.Error("expected error after cancellation")
	}
}

func TestIsTransient_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", Transient(errors.New("x")), true},
		{"marked permanent", Permanent(errors.New("x")), false},
		{"unclassified defaults to transient", errors.New("x"), true},
		{"circuit open is transient for bookkeeping", ErrCircuitOpen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
