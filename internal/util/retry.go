package util

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn until it succeeds, giving up after maxAttempts. Failed
// attempts are separated by an exponentially growing delay starting at
// baseDelay. Cancelling ctx aborts the wait between attempts; fn itself is
// responsible for honouring ctx.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay << (attempt - 1)):
		}
	}

	if maxAttempts > 1 {
		return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
	}
	return lastErr
}
