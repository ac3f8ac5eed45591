// Package proof records successful second-factor logins as durable proofs:
// an archive row, an on-chain logProof transaction and a published event.
package proof

import (
	"context"
	"errors"
	"time"
)

// Status reports how far a proof request got
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusQueued   Status = "queued"
	StatusPending  Status = "pending"
	StatusRecorded Status = "recorded"
	StatusFailed   Status = "failed"
)

// Request describes one successful verification to record
type Request struct {
	ChallengeID string
	Identity    string
	Address     string
	BindingHash string
	VerifiedAt  time.Time
}

// Recorder records login proofs. The HTTP layer calls it after a
// verification succeeded; it is never part of the verification itself.
type Recorder interface {
	Record(ctx context.Context, req Request) (Status, error)
}

// Error definitions
var (
	ErrQueueFull         = errors.New("proof queue is full")
	ErrDispatcherStopped = errors.New("proof dispatcher stopped")
	ErrDuplicateProof    = errors.New("proof already archived")
	ErrProofNotFound     = errors.New("proof not found")
)

// NopRecorder is used when proof recording is disabled
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) Record(context.Context, Request) (Status, error) {
	return StatusDisabled, nil
}
