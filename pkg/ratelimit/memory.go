package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shardCount = 32

type window struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryLimiter implements Limiter with process-local sharded windows.
type MemoryLimiter struct {
	config Config
	shards [shardCount]*shard
	logger *zap.Logger
}

// Compile-time interface compliance check
var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates an in-memory fixed window limiter
func NewMemoryLimiter(config Config, logger *zap.Logger) *MemoryLimiter {
	l := &MemoryLimiter{
		config: config.withDefaults(),
		logger: logger,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return l
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.config.Now()
	sh := l.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		sh.windows[key] = w
	}

	if w.count >= l.config.MaxAttempts {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.config.MaxAttempts - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// Cleanup drops every window that has already reset
func (l *MemoryLimiter) Cleanup() int {
	now := l.config.Now()
	removed := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, w := range sh.windows {
			if !now.Before(w.resetAt) {
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run calls Cleanup once per window until ctx is cancelled.
func (l *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Cleanup(); removed > 0 {
				l.logger.Debug("stale rate limit windows removed", zap.Int("removed", removed))
			}
		}
	}
}
