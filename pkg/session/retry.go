package session

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

func retryable(status int) bool {
	switch status {
	case StatusConnectionError,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff doubles from retryBaseDelay, caps at retryMaxDelay and returns a
// jittered value in [delay/2, delay).
func backoff(attempt int) time.Duration {
	delay := float64(retryBaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(retryMaxDelay) {
		delay = float64(retryMaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + rand.N(half)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
