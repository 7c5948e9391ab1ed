package bybit

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	maxRetries    = 3
	initialDelay  = time.Second
	maxDelay      = 30 * time.Second
	backoffFactor = 2.0
)

// retry runs fn up to maxRetries+1 times with jittered exponential backoff.
// Only retryable API errors are repeated; request errors return immediately.
func retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries || !shouldRetry(lastErr) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt)):
		}
	}
	return lastErr
}

func shouldRetry(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	// Transport-level failures (timeouts, resets) surface as plain errors.
	return true
}

func backoffDelay(attempt int) time.Duration {
	delay := float64(initialDelay) * math.Pow(backoffFactor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	// Up to 25% jitter keeps concurrent clients from thundering together.
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
