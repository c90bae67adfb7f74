package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := BackoffPolicy{BaseDelay: time.Millisecond, Multiplier: 2, MaxRetries: 5}
	attempts := 0
	result, err := Retry(context.Background(), policy, func(error) bool { return true }, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errBoom
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %q", "ok", result)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	policy := BackoffPolicy{BaseDelay: time.Millisecond, Multiplier: 2, MaxRetries: 5}
	attempts := 0
	_, err := Retry(context.Background(), policy, func(error) bool { return false }, func() (string, error) {
		attempts++
		return "", errBoom
	})
	if err == nil {
		t.Fatalf("expected a non-retryable error to surface")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	policy := BackoffPolicy{BaseDelay: time.Millisecond, Multiplier: 1, MaxRetries: 2}
	attempts := 0
	_, err := Retry(context.Background(), policy, func(error) bool { return true }, func() (string, error) {
		attempts++
		return "", errBoom
	})
	if err == nil {
		t.Fatalf("expected an error once retries are exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected 1 initial attempt + 2 retries = 3, got %d", attempts)
	}
}
