package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultVisitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. Idle keys are swept
// lazily on access once they have been unused for the TTL.
type MemoryLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	clock     func() time.Time
	lastSweep time.Time
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithVisitorTTL overrides how long an idle key keeps its bucket.
func WithVisitorTTL(ttl time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// NewMemoryLimiter constructs an in-process limiter.
func NewMemoryLimiter(settings Settings, options ...MemoryOption) *MemoryLimiter {
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(settings.refillInterval()),
		burst:    burst,
		ttl:      defaultVisitorTTL,
		clock:    time.Now,
	}
	for _, option := range options {
		option(limiter)
	}
	limiter.lastSweep = limiter.clock()
	return limiter
}

// Allow consumes one token for key when available.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	current, ok := l.visitors[key]
	if !ok {
		current = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = current
	}
	current.lastSeen = now

	reservation := current.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{}, nil
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(current.limiter.TokensAt(now))}, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	for key, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
