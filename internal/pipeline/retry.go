package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs op up to maxAttempts times with exponential backoff
// and jitter, stopping early on fatal classification or cancellation.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			if attempt > 1 {
				slog.DebugContext(ctx, "operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		slog.DebugContext(ctx, "retryable failure", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
		return err
	}, policy)
}
