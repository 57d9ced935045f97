// Package ratelimit enforces a minimum inter-request interval per domain.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coverwire/harvester/internal/telemetry"
)

const pollInterval = 50 * time.Millisecond

// Limiter tracks recent request timestamps per domain behind a single mutex.
// The map is never exposed; callers interact only through Allow, Record and
// Wait. A cold limiter starts permissive and holds no state across restarts.
type Limiter struct {
	mu       sync.Mutex
	recent   map[string][]time.Time
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

// New creates a Limiter with the given minimum inter-request interval.
func New(interval time.Duration) *Limiter {
	window := 10 * interval
	if window < time.Minute {
		window = time.Minute
	}
	return &Limiter{
		recent:   make(map[string][]time.Time),
		interval: interval,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the minimum interval has elapsed since the last
// recorded request to domain. It never consumes state; pair with Record.
func (l *Limiter) Allow(domain string) bool {
	if l.interval <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.prune(domain, now)
	if len(stamps) == 0 {
		return true
	}
	last := stamps[len(stamps)-1]
	return now.Sub(last) >= l.interval
}

// Record timestamps a dispatched request to domain.
func (l *Limiter) Record(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.prune(domain, now)
	l.recent[domain] = append(stamps, now)
}

// TryAcquire atomically checks Allow and, on success, records the dispatch.
// Concurrent callers cannot both acquire the same domain inside one interval.
func (l *Limiter) TryAcquire(domain string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.prune(domain, now)
	if l.interval > 0 && len(stamps) > 0 {
		if now.Sub(stamps[len(stamps)-1]) < l.interval {
			return false
		}
	}
	l.recent[domain] = append(stamps, now)
	return true
}

// Wait blocks until a dispatch slot for domain is acquired or the context
// finishes. The limiter only delays requests, it never drops them. A
// successful Wait has already recorded the dispatch timestamp.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	start := l.now()
	for {
		if l.TryAcquire(domain) {
			if waited := l.now().Sub(start); waited > time.Millisecond {
				telemetry.ObserveRateLimitDelay(domain, waited)
			}
			return nil
		}
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait for %s: %w", domain, ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops timestamps older than the trailing window. Caller holds the lock.
func (l *Limiter) prune(domain string, now time.Time) []time.Time {
	stamps := l.recent[domain]
	cutoff := now.Add(-l.window)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.recent, domain)
		return nil
	}
	l.recent[domain] = kept
	return kept
}
