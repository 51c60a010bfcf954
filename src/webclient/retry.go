package webclient

import (
	"context"
	"net/http"
	"time"
)

const maxDelay = 30 * time.Second

// AttemptFunc performs one request and reports the status, body and transport error.
type AttemptFunc func() (status int, body []byte, err error)

// DoWithRetry retries fn on transport errors, 429 and 5xx responses, doubling the
// delay between attempts. The last attempt's values are returned when all fail.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}

	delay := initialDelay
	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < attempts; i++ {
		status, body, err = fn()
		if !Retryable(status, err) {
			return status, body, err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < maxDelay {
			delay *= 2
		}
	}
	return status, body, err
}

// Retryable reports whether a response warrants another attempt.
func Retryable(status int, err error) bool {
	if err != nil && status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
