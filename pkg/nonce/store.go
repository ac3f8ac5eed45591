package nonce

import (
	"context"
	"errors"
	"time"
)

// Store defines the interface for challenge storage.
// Implementations can use Redis, in-memory, or other backends.
// Every method must be safe for concurrent use, and operations on one
// identity must never wait on another identity.
type Store interface {
	// Put stores c as the current challenge for c.Identity, replacing any previous one
	Put(ctx context.Context, c Challenge) error

	// Get returns the current challenge without removing it.
	// Returns ErrNotFound when the identity has none.
	Get(ctx context.Context, identity string) (Challenge, error)

	// Delete removes the identity's challenge only if its ID equals id.
	// A newer challenge issued in the meantime is left in place.
	Delete(ctx context.Context, identity, id string) error

	// Take atomically returns and removes the current challenge.
	// Of two concurrent callers at most one receives the challenge.
	Take(ctx context.Context, identity string) (Challenge, error)

	// Sweep removes every challenge expired at now and reports how many were removed
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Error definitions
var (
	ErrNotFound      = errors.New("challenge not found")
	ErrExpired       = errors.New("challenge expired")
	ErrEmptyIdentity = errors.New("identity is required")
)
