package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// keyPrefix is the Redis key prefix for challenges
	keyPrefix = "challenge"

	// DefaultRetention keeps a challenge readable after expiry so that
	// callers can tell "expired" apart from "never issued".
	DefaultRetention = time.Minute

	scanBatch = 100
)

// deleteIfScript removes the key only while it still holds the given challenge ID.
var deleteIfScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
local c = cjson.decode(v)
if c['id'] == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.Logger
}

// Compile-time interface compliance check
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based challenge store with default retention
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return NewRedisStoreWithRetention(client, DefaultRetention, logger)
}

// NewRedisStoreWithRetention creates a new Redis-based challenge store that
// keeps expired challenges for retention past their expiry
func NewRedisStoreWithRetention(client *redis.Client, retention time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		retention: retention,
		logger:    logger,
	}
}

// buildKey creates a Redis key from identity
// Format: challenge:{identity}
func buildKey(identity string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, identity)
}

func (s *RedisStore) Put(ctx context.Context, c Challenge) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	ttl := c.ExpiresAt.Sub(c.IssuedAt) + s.retention
	if err := s.client.Set(ctx, buildKey(c.Identity), payload, ttl).Err(); err != nil {
		s.logger.Error("failed to store challenge",
			zap.String("identity", c.Identity),
			zap.String("challenge_id", c.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	s.logger.Debug("challenge stored",
		zap.String("identity", c.Identity),
		zap.String("challenge_id", c.ID),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identity string) (Challenge, error) {
	raw, err := s.client.Get(ctx, buildKey(identity)).Bytes()
	if err != nil {
		return Challenge{}, s.readError(identity, "failed to read challenge", err)
	}
	return decode(raw)
}

func (s *RedisStore) Take(ctx context.Context, identity string) (Challenge, error) {
	raw, err := s.client.GetDel(ctx, buildKey(identity)).Bytes()
	if err != nil {
		return Challenge{}, s.readError(identity, "failed to take challenge", err)
	}
	return decode(raw)
}

func (s *RedisStore) Delete(ctx context.Context, identity, id string) error {
	if err := deleteIfScript.Run(ctx, s.client, []string{buildKey(identity)}, id).Err(); err != nil {
		s.logger.Error("failed to delete challenge",
			zap.String("identity", identity),
			zap.String("challenge_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read challenge during sweep: %w", err)
		}

		c, err := decode(raw)
		if err != nil {
			s.logger.Warn("dropping undecodable challenge", zap.String("key", key), zap.Error(err))
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("failed to delete challenge during sweep: %w", err)
			}
			removed++
			continue
		}
		if !c.Expired(now) {
			continue
		}

		n, err := deleteIfScript.Run(ctx, s.client, []string{key}, c.ID).Int()
		if err != nil {
			return removed, fmt.Errorf("failed to delete challenge during sweep: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan challenges: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) readError(identity, msg string, err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	s.logger.Error(msg, zap.String("identity", identity), zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

func decode(raw []byte) (Challenge, error) {
	var c Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return Challenge{}, fmt.Errorf("failed to decode challenge: %w", err)
	}
	return c, nil
}
