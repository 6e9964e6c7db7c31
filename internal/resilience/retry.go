// Package resilience provides the backoff and failure-isolation primitives
// shared by the archive pipeline, peer sync, and chain client.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Retry executes fn with exponential backoff and full jitter. delay is the
// initial backoff; it doubles (capped at 60s) after every failed attempt.
// Used by the Packer to retry a pack_solve call that failed within its
// budget.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, nil
	}
	meter := otel.Meter("tape-node")
	attemptCounter, _ := meter.Int64Counter("tape_resilience_retry_attempts_total")
	successCounter, _ := meter.Int64Counter("tape_resilience_retry_success_total")
	failCounter, _ := meter.Int64Counter("tape_resilience_retry_fail_total")

	cur := delay
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		attemptCounter.Add(ctx, 1)
		if err == nil {
			successCounter.Add(ctx, 1)
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if cur > 60*time.Second {
			cur = 60 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			failCounter.Add(ctx, 1, metric.WithAttributes())
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	failCounter.Add(ctx, 1)
	return zero, lastErr
}
