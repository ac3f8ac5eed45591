package proof

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahwlsqja/chainauth/internal/metrics"
	"github.com/ahwlsqja/chainauth/pkg/ledger"
	"go.uber.org/zap"
)

// DispatcherConfig holds worker pool settings. Zero values fall back to defaults.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration
	AttemptTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 3 * time.Minute
	}
	return c
}

// Dispatcher runs a Recorder off the request path on a bounded worker pool,
// retrying failures with exponential backoff.
type Dispatcher struct {
	next   Recorder
	config DispatcherConfig
	queue  chan Request
	logger *zap.Logger

	mu      sync.Mutex
	stopped chan struct{}
	wg      sync.WaitGroup
}

var _ Recorder = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher in front of next
func NewDispatcher(next Recorder, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	config = config.withDefaults()
	return &Dispatcher{
		next:    next,
		config:  config,
		queue:   make(chan Request, config.QueueSize),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Record enqueues req without blocking.
func (d *Dispatcher) Record(_ context.Context, req Request) (Status, error) {
	select {
	case <-d.stopped:
		return StatusFailed, ErrDispatcherStopped
	default:
	}

	select {
	case d.queue <- req:
		metrics.ObserveProof(string(StatusQueued))
		return StatusQueued, nil
	default:
		metrics.ObserveProof("dropped")
		d.logger.Warn("proof queue full, dropping request",
			zap.String("identity", req.Identity),
			zap.String("challenge_id", req.ChallengeID),
		)
		return StatusFailed, ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	d.logger.Info("proof dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Int("queue_size", d.config.QueueSize),
	)
}

// Stop rejects new requests and waits for workers to exit.
// Cancel the Start context first.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	select {
	case <-d.stopped:
	default:
		close(d.stopped)
	}
	d.mu.Unlock()

	d.wg.Wait()
	if pending := len(d.queue); pending > 0 {
		d.logger.Warn("proof dispatcher stopped with pending requests", zap.Int("pending", pending))
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.process(ctx, worker, req)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, worker int, req Request) {
	delay := d.config.RetryBaseDelay
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
		status, err := d.next.Record(attemptCtx, req)
		cancel()
		if err == nil {
			d.logger.Debug("proof request processed",
				zap.Int("worker", worker),
				zap.String("challenge_id", req.ChallengeID),
				zap.String("status", string(status)),
			)
			return
		}

		if ctx.Err() != nil || attempt >= d.config.MaxRetries || !retryable(err) {
			d.logger.Error("proof request abandoned",
				zap.Int("worker", worker),
				zap.String("identity", req.Identity),
				zap.String("challenge_id", req.ChallengeID),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return
		}

		d.logger.Warn("proof request failed, retrying",
			zap.Int("worker", worker),
			zap.String("challenge_id", req.ChallengeID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrDispatcherStopped) && !errors.Is(err, ledger.ErrInvalidHash)
}
