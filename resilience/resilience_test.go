package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	boom := errors.New("unavailable")

	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed initially, got %s", cb.GetState())
	}
	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return boom })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.GetState())
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	boom := errors.New("unavailable")

	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return boom })
	}
	time.Sleep(80 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.GetState())
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Second)
	boom := errors.New("unavailable")

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return boom })
	}
	if cb.GetFailures() != 3 {
		t.Fatalf("expected 3 failures, got %d", cb.GetFailures())
	}
	cb.Execute(func() error { return nil })
	if cb.GetFailures() != 0 {
		t.Errorf("expected failure count reset, got %d", cb.GetFailures())
	}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryIf:      IsRetryable,
	}

	calls := 0
	err := RetryWithConfig(context.Background(), cfg, func() error {
		calls++
		return errors.New("still failing")
	})

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	var maxErr ErrMaxRetriesExceeded
	if !errors.As(err, &maxErr) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", err)
	}
}

func TestRetrySucceedsMidway(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryIf:      IsRetryable,
	}

	calls := 0
	err := RetryWithConfig(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithConfig(ctx, nil, func() error { return errors.New("never retried") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	boom := errors.New("unavailable")

	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return boom })
	}
	time.Sleep(80 * time.Millisecond)

	if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected the probe call to run, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", cb.GetState())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen after reopening, got %v", err)
	}
}
