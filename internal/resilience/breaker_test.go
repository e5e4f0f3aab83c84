package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(_ context.Context) (int, error) { return 0, errors.New("fail") }
func passing(_ context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "search", FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), b, failing)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	var called bool
	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn should not run while open")
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2})

	_, _ = Call(context.Background(), b, failing)
	_, _ = Call(context.Background(), b, passing)
	_, _ = Call(context.Background(), b, failing)

	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(11 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	if _, err := Call(context.Background(), b, passing); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failing)
	now = now.Add(11 * time.Second)
	_, _ = Call(context.Background(), b, failing)

	if b.State() != BreakerOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})
	_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) {
		return 0, context.Canceled
	})
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}
