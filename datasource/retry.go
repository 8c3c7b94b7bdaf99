package datasource

import (
	"context"
	"log/slog"
	"time"
)

// retryWithBackoff runs fn up to maxAttempts times, pausing between
// failures. The pause starts at baseDelay and doubles per attempt.
// The final failure is returned as-is; a cancelled context cuts both
// the pause and the next attempt short.
func retryWithBackoff(ctx context.Context, log *slog.Logger, fn func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			return err
		}
		delay := baseDelay << (attempt - 1)
		log.Debug("attempt failed, backing off",
			"attempt", attempt, "of", maxAttempts, "backoff", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
