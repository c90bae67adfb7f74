// Package resilience provides retry, circuit-breaking and rate-limiting
// helpers: the CAS HTTP backend retries through Retry, and the LLM oracle
// transport is throttled by RateLimiter.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
)

// BackoffPolicy mirrors the parameters spec.md §4.1 requires of the CAS
// client's transport retry: base delay, multiplier, and an attempt cap.
type BackoffPolicy struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxRetries uint64
}

// DefaultCASBackoff is the exponential backoff spec.md §4.1 mandates: base
// 200ms, factor 2, at most 3 attempts (the first attempt plus 2 retries).
var DefaultCASBackoff = BackoffPolicy{
	BaseDelay:  200 * time.Millisecond,
	Multiplier: 2,
	MaxRetries: 2,
}

// newExponentialBackoff builds a cenkalti/backoff exponential policy from a
// BackoffPolicy, capped at MaxRetries retries after the first attempt via
// backoff.WithMaxRetries.
func (p BackoffPolicy) newExponentialBackoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = p.Multiplier
	eb.MaxElapsedTime = 0 // bounded by MaxRetries instead of wall-clock
	withCtx := backoff.WithContext(eb, ctx)
	if p.MaxRetries == 0 {
		return withCtx
	}
	return backoff.WithMaxRetries(withCtx, p.MaxRetries)
}

// Retry runs fn under the given backoff policy, retrying only when fn
// returns a retryable error (retryable(err) == true). A non-retryable error
// short-circuits immediately, matching spec.md §4.1: "upstream semantic
// errors do not retry".
func Retry[T any](ctx context.Context, policy BackoffPolicy, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	meter := otel.Meter("gotcore")
	attempts, _ := meter.Int64Counter("got_resilience_retry_attempts_total")
	failures, _ := meter.Int64Counter("got_resilience_retry_fail_total")

	var result T
	op := func() error {
		v, err := fn()
		attempts.Add(ctx, 1)
		if err == nil {
			result = v
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, policy.newExponentialBackoff(ctx))
	if err != nil {
		failures.Add(ctx, 1)
		return zero, err
	}
	return result, nil
}
