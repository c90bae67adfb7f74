package resilience

import (
	"testing"
	"time"
)

func TestCircuitBreakerAllowsWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker(time.Second, 4, 5, 0.5, 50*time.Millisecond, 1)
	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("expected a closed breaker to allow request %d", i)
		}
		cb.RecordResult(true)
	}
}

func TestCircuitBreakerOpensAfterFailureRateExceeded(t *testing.T) {
	cb := NewCircuitBreaker(time.Second, 4, 4, 0.5, 50*time.Millisecond, 1)
	cb.RecordResult(true)
	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.Allow() {
		t.Fatalf("expected the breaker to open once failures reached the configured rate")
	}
}

func TestCircuitBreakerHalfOpensAfterCooldownThenCloses(t *testing.T) {
	cb := NewCircuitBreaker(time.Second, 4, 2, 0.5, 20*time.Millisecond, 1)
	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.Allow() {
		t.Fatalf("expected the breaker open immediately after tripping")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected a half-open probe to be allowed after the cooldown")
	}
	cb.RecordResult(true)

	if !cb.Allow() {
		t.Fatalf("expected the breaker to have closed after a successful half-open probe")
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(time.Second, 4, 2, 0.5, 20*time.Millisecond, 1)
	cb.RecordResult(false)
	cb.RecordResult(false)
	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatalf("expected a half-open probe to be allowed after the cooldown")
	}
	cb.RecordResult(false)

	if cb.Allow() {
		t.Fatalf("expected a failed half-open probe to reopen the breaker immediately")
	}
}
