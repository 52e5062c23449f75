package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 4
	retryBaseDelay     = 50 * time.Millisecond
	retryMaxDelay      = 1 * time.Second
)

// withRetry runs op, retrying transient store failures with exponential
// backoff and full jitter up to maxAttempts. Non-transient errors and
// context cancellation abort immediately.
func withRetry(ctx context.Context, maxAttempts int, op func(context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// backoffDelay returns a full-jitter delay for the given attempt (1-based).
func backoffDelay(attempt int) time.Duration {
	max := retryBaseDelay << (attempt - 1)
	if max > retryMaxDelay {
		max = retryMaxDelay
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
