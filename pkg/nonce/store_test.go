package nonce

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, zap.NewNop()), mr
}

func storeBackends(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func testChallenge(identity, id string, issuedAt time.Time) Challenge {
	return Challenge{
		ID:          id,
		Identity:    identity,
		Nonce:       "nonce-" + id,
		BindingHash: Bind("nonce-"+id, issuedAt, identity),
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(DefaultTTL),
	}
}

func TestStore_PutGetTake(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.UnixMilli(1700000000000).UTC()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			c := testChallenge("u1", "c1", issuedAt)
			require.NoError(t, store.Put(ctx, c))

			got, err := store.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, c.ID, got.ID)
			assert.Equal(t, c.BindingHash, got.BindingHash)
			assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt))

			taken, err := store.Take(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, c.Nonce, taken.Nonce)

			_, err = store.Take(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.UnixMilli(1700000000000).UTC()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, testChallenge("u1", "old", issuedAt)))
			require.NoError(t, store.Put(ctx, testChallenge("u1", "new", issuedAt.Add(time.Second))))

			got, err := store.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "new", got.ID)
		})
	}
}

func TestStore_DeleteMatchesID(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.UnixMilli(1700000000000).UTC()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, testChallenge("u1", "current", issuedAt)))

			require.NoError(t, store.Delete(ctx, "u1", "stale"))
			_, err := store.Get(ctx, "u1")
			require.NoError(t, err, "delete with another id must keep the challenge")

			require.NoError(t, store.Delete(ctx, "u1", "current"))
			_, err = store.Get(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, "missing", "x"))
		})
	}
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	t0 := time.UnixMilli(1700000000000).UTC()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				require.NoError(t, store.Put(ctx, testChallenge(fmt.Sprintf("old-%d", i), fmt.Sprintf("o%d", i), t0)))
			}
			require.NoError(t, store.Put(ctx, testChallenge("fresh", "f", t0.Add(4*time.Minute))))

			removed, err := store.Sweep(ctx, t0.Add(DefaultTTL+time.Second))
			require.NoError(t, err)
			assert.Equal(t, 3, removed)

			_, err = store.Get(ctx, "fresh")
			assert.NoError(t, err)
			_, err = store.Get(ctx, "old-0")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRedisStore_TTLIncludesRetention(t *testing.T) {
	store, mr := newRedisStore(t)
	issuedAt := time.UnixMilli(1700000000000).UTC()

	require.NoError(t, store.Put(context.Background(), testChallenge("u1", "c1", issuedAt)))
	assert.Equal(t, DefaultTTL+DefaultRetention, mr.TTL(buildKey("u1")))

	mr.FastForward(DefaultTTL + DefaultRetention + time.Second)
	_, err := store.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SweepDropsGarbage(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set(buildKey("broken"), "{not json"))

	removed, err := store.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, mr.Exists(buildKey("broken")))
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Take(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
