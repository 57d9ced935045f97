package fetch

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/coverwire/harvester/internal/news"
)

// exponentialRetryPolicy governs retries for transport-level failures only.
// Status-coded failures (403, 429) are never retried synchronously; they get
// a cooldown and a typed error instead.
type exponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetryPolicy(maxAttempts int) *exponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &exponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// shouldRetry decides whether the error is retryable at the given attempt
// (1-based). Only connection errors and timeouts qualify.
func (p *exponentialRetryPolicy) shouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *news.FetchError
	if errors.As(err, &fe) && fe.Kind != news.KindNetwork {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return news.KindOf(err) == news.KindNetwork
}

// backoff returns the wait before the next attempt (1-based), exponential
// with half-window jitter.
func (p *exponentialRetryPolicy) backoff(attempt int, rnd func(min, max float64) float64) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := delay / 2
	return time.Duration(half + rnd(0, half))
}
