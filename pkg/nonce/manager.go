package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds Manager settings. Zero values fall back to defaults.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration

	// Now overrides the wall clock, mainly for tests
	Now func() time.Time

	// OnSweep is called after every sweep pass with the number of removed challenges
	OnSweep func(removed int)
}

// Manager runs the challenge lifecycle on top of a Store:
// issue, fetch, single-use consume and periodic expiry sweep.
type Manager struct {
	store  Store
	config Config
	logger *zap.Logger
}

// NewManager creates a challenge manager backed by store
func NewManager(store Store, config Config, logger *zap.Logger) *Manager {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Manager{
		store:  store,
		config: config,
		logger: logger,
	}
}

// TTL returns the validity window of issued challenges
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue creates a fresh challenge for identity, replacing any previous one.
func (m *Manager) Issue(ctx context.Context, identity string) (Challenge, error) {
	if identity == "" {
		return Challenge{}, ErrEmptyIdentity
	}

	value, err := Generate()
	if err != nil {
		return Challenge{}, err
	}

	// Millisecond precision keeps the binding reproducible from the reported timestamps
	issuedAt := m.config.Now().Truncate(time.Millisecond)
	c := Challenge{
		ID:          uuid.NewString(),
		Identity:    identity,
		Nonce:       value,
		BindingHash: Bind(value, issuedAt, identity),
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(m.config.TTL),
	}

	if err := m.store.Put(ctx, c); err != nil {
		return Challenge{}, fmt.Errorf("failed to issue challenge: %w", err)
	}

	m.logger.Debug("challenge issued",
		zap.String("identity", identity),
		zap.String("challenge_id", c.ID),
		zap.Time("expires_at", c.ExpiresAt),
	)
	return c, nil
}

// Fetch returns the live challenge for identity without consuming it.
// An expired challenge is deleted and reported as ErrExpired.
func (m *Manager) Fetch(ctx context.Context, identity string) (Challenge, error) {
	c, err := m.store.Get(ctx, identity)
	if err != nil {
		return Challenge{}, err
	}

	if c.Expired(m.config.Now()) {
		if err := m.store.Delete(ctx, identity, c.ID); err != nil {
			m.logger.Warn("failed to delete expired challenge",
				zap.String("identity", identity),
				zap.String("challenge_id", c.ID),
				zap.Error(err),
			)
		}
		return Challenge{}, ErrExpired
	}
	return c, nil
}

// Consume atomically takes the challenge for identity.
// The challenge is gone afterwards whatever the outcome.
func (m *Manager) Consume(ctx context.Context, identity string) (Challenge, error) {
	c, err := m.store.Take(ctx, identity)
	if err != nil {
		return Challenge{}, err
	}
	if c.Expired(m.config.Now()) {
		return Challenge{}, ErrExpired
	}

	m.logger.Debug("challenge consumed",
		zap.String("identity", identity),
		zap.String("challenge_id", c.ID),
	)
	return c, nil
}

// Sweep removes every expired challenge once.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	removed, err := m.store.Sweep(ctx, m.config.Now())
	if removed > 0 && m.config.OnSweep != nil {
		m.config.OnSweep(removed)
	}
	if err != nil {
		return removed, fmt.Errorf("failed to sweep challenges: %w", err)
	}
	return removed, nil
}

// Run sweeps on every SweepInterval tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("challenge sweeper started", zap.Duration("interval", m.config.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("challenge sweeper stopped")
			return
		case <-ticker.C:
			removed, err := m.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("challenge sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				m.logger.Info("expired challenges swept", zap.Int("removed", removed))
			}
		}
	}
}
