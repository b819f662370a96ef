package crawl

import (
	"context"
	"time"
)

// DefaultRetryDelays returns the backoff delays for sink write retries:
// 100ms, 200ms, 400ms.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
}

// Retry calls fn until it succeeds, retrying once per delay.
// It returns the last error, or the context error if ctx ends while waiting.
func Retry(ctx context.Context, delays []time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == len(delays) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}
	return lastErr
}
