package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit"

// allowScript increments the window counter unless the ceiling is reached.
// KEYS[1] window key, ARGV[1] window in ms, ARGV[2] ceiling.
// Returns {count, pttl, allowed}.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[2]) then
	local ttl = redis.call('PTTL', KEYS[1])
	return {current, ttl, 0}
end
current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl, 1}
`)

// RedisLimiter implements Limiter with one Redis counter per key,
// shared by every replica of the service.
type RedisLimiter struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// Compile-time interface compliance check
var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed fixed window limiter
func NewRedisLimiter(client *redis.Client, config Config, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		config: config.withDefaults(),
		logger: logger,
	}
}

func buildKey(key string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, key)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := allowScript.Run(ctx, l.client,
		[]string{buildKey(key)},
		l.config.Window.Milliseconds(),
		l.config.MaxAttempts,
	).Int64Slice()
	if err != nil {
		l.logger.Error("rate limit check failed", zap.String("key", key), zap.Error(err))
		return Decision{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	count, ttl, allowed := res[0], res[1], res[2] == 1
	remaining := l.config.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   l.config.Now().Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}
