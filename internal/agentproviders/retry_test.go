package agentproviders

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Jitter: 0}
	attempts := 0
	err := withRetry(context.Background(), cfg, func(error) bool { return true }, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond}
	attempts := 0
	err := withRetry(context.Background(), cfg, func(error) bool { return false }, func() error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	attempts := 0
	err := withRetry(context.Background(), cfg, func(error) bool { return true }, func() error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
