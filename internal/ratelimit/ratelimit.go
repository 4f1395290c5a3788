// Package ratelimit provides token-bucket limiting over golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is one client's token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// requestsPerMinute specifies how many requests are allowed per minute.
func New(requestsPerMinute int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(perMinute(requestsPerMinute), burstFor(requestsPerMinute)),
	}
}

func perMinute(requestsPerMinute int) rate.Limit {
	return rate.Limit(float64(requestsPerMinute) / 60.0)
}

// burstFor allows a burst of 10% of the per-minute rate.
func burstFor(requestsPerMinute int) int {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return burst
}

// AllowAt reports whether an event may happen at t.
func (l *Limiter) AllowAt(t time.Time) bool {
	return l.limiter.AllowN(t, 1)
}

type entry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// Keyed keeps one limiter per client key. Idle clients are forgotten
// after the idle timeout.
type Keyed struct {
	requestsPerMinute int
	idle              time.Duration
	now               func() time.Time

	mu      sync.Mutex
	clients map[string]*entry
}

// NewKeyed creates a per-client limiter.
func NewKeyed(requestsPerMinute int, idle time.Duration) *Keyed {
	return &Keyed{
		requestsPerMinute: requestsPerMinute,
		idle:              idle,
		now:               time.Now,
		clients:           make(map[string]*entry),
	}
}

// Allow reports whether key may make a request now.
func (k *Keyed) Allow(key string) bool {
	now := k.now()

	k.mu.Lock()
	e, ok := k.clients[key]
	if !ok {
		e = &entry{limiter: New(k.requestsPerMinute)}
		k.clients[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.AllowAt(now)
}

// Len returns the number of tracked clients.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.clients)
}

// Sweep drops clients idle for longer than the idle timeout.
func (k *Keyed) Sweep() int {
	cutoff := k.now().Add(-k.idle)

	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, e := range k.clients {
		if e.lastSeen.Before(cutoff) {
			delete(k.clients, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle clients every interval until ctx is done.
func (k *Keyed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}
