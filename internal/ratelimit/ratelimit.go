// Package ratelimit throttles unauthenticated endpoints per client key.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = 5 * time.Minute

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter admits or rejects a request identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
	Close()
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Memory is a token bucket per key refilling perMinute tokens each minute.
type Memory struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*keyLimiter
	now     func() time.Time

	stopCh chan struct{}
	once   sync.Once
}

// NewMemory starts a limiter and its background sweeper. perMinute <= 0 disables limiting.
func NewMemory(perMinute int) *Memory {
	m := &Memory{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		entries: make(map[string]*keyLimiter),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Memory) Allow(_ context.Context, key string) Decision {
	if m.burst <= 0 {
		return Decision{Allowed: true}
	}
	now := m.now()

	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.entries[key] = entry
	}
	entry.lastAccess = now
	m.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// Len reports how many keys are tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(m.now())
		case <-m.stopCh:
			return
		}
	}
}

// cleanup drops keys idle for more than two sweep intervals.
func (m *Memory) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if now.Sub(entry.lastAccess) > 2*sweepInterval {
			delete(m.entries, key)
		}
	}
}

func (m *Memory) Close() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}
