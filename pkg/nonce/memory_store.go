package nonce

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type shard struct {
	mu    sync.Mutex
	items map[string]Challenge
}

// MemoryStore implements Store with process-local sharded maps.
// Identities hashing to different shards never share a lock.
type MemoryStore struct {
	shards [shardCount]*shard
}

// Compile-time interface compliance check
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory challenge store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]Challenge)}
	}
	return s
}

func (s *MemoryStore) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Put(_ context.Context, c Challenge) error {
	sh := s.shardFor(c.Identity)
	sh.mu.Lock()
	sh.items[c.Identity] = c
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity string) (Challenge, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.items[identity]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Delete(_ context.Context, identity, id string) error {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if c, ok := sh.items[identity]; ok && c.ID == id {
		delete(sh.items, identity)
	}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, identity string) (Challenge, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.items[identity]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	delete(sh.items, identity)
	return c, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for identity, c := range sh.items {
			if c.Expired(now) {
				delete(sh.items, identity)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored challenges, expired ones included
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}
