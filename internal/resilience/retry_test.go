package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, attempts, err := Retry(context.Background(), fastPolicy(3), func(_ context.Context, _ int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" || attempts != 1 || calls != 1 {
		t.Errorf("got val=%q attempts=%d calls=%d", val, attempts, calls)
	}
}

func TestRetry_FailsTwiceThenSucceeds(t *testing.T) {
	var seen []int
	val, attempts, err := Retry(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) (int, error) {
		seen = append(seen, attempt)
		if attempt < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 || attempts != 3 {
		t.Errorf("got val=%d attempts=%d", val, attempts)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("unexpected attempt numbers: %v", seen)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var retries []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		retries = append(retries, attempt)
	}

	_, attempts, err := Retry(context.Background(), p, func(_ context.Context, _ int) (struct{}, error) {
		return struct{}{}, errors.New("always")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	// No backoff after the final attempt.
	if len(retries) != 2 {
		t.Errorf("expected 2 retry callbacks, got %v", retries)
	}
}

func TestRetry_StopShortCircuits(t *testing.T) {
	var calls int
	_, attempts, err := Retry(context.Background(), fastPolicy(5), func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, Stop(errors.New("unauthorized"))
	})
	if err == nil || !IsStopped(err) {
		t.Fatalf("expected stopped error, got %v", err)
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected a single call, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestRetry_RetryableFilter(t *testing.T) {
	permanent := errors.New("bad request")
	p := fastPolicy(4)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	var calls int
	_, _, err := Retry(context.Background(), p, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	var calls int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = Retry(ctx, p, func(_ context.Context, _ int) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_DelayJitterBounds(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2, JitterFraction: 0.5}
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", d)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(5, 100, 1000, 3, 0)
	if p.MaxAttempts != 5 || p.InitialBackoff != 100*time.Millisecond || p.MaxBackoff != time.Second || p.Multiplier != 3 {
		t.Errorf("unexpected policy: %+v", p)
	}

	d, def := NewPolicy(0, 0, 0, 0, 0), DefaultPolicy()
	if d.MaxAttempts != def.MaxAttempts || d.InitialBackoff != def.InitialBackoff || d.MaxBackoff != def.MaxBackoff {
		t.Errorf("zero values should keep defaults, got %+v", d)
	}
}
