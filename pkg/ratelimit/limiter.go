// Package ratelimit bounds how often a key may attempt an operation
// using a fixed window counter.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter counts attempts per key.
// Allow increments the window and decides in one atomic step; a rejected
// attempt does not push the count past the ceiling.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config holds limiter settings. Zero values fall back to defaults.
type Config struct {
	MaxAttempts int
	Window      time.Duration

	// Now overrides the wall clock, mainly for tests
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
