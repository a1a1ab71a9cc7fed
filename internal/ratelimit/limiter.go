// Package ratelimit throttles public submissions per client key.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects one request for the given key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Settings describes a token bucket: Burst tokens, refilled at RequestsPerMinute.
type Settings struct {
	RequestsPerMinute int
	Burst             int
}

func (s Settings) refillInterval() time.Duration {
	if s.RequestsPerMinute <= 0 {
		return time.Minute
	}
	return time.Minute / time.Duration(s.RequestsPerMinute)
}
