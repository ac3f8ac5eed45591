package proof

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahwlsqja/chainauth/internal/metrics"
	"github.com/ahwlsqja/chainauth/pkg/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service records a proof synchronously: archive row, ledger write,
// archive update, event. The repository and publisher are optional.
type Service struct {
	ledger    ledger.Writer
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

var _ Recorder = (*Service)(nil)

// NewService creates a proof service. repo and publisher may be nil.
func NewService(writer ledger.Writer, repo Repository, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		ledger:    writer,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Record(ctx context.Context, req Request) (Status, error) {
	proofHash, err := ledger.ToBytes32(req.BindingHash)
	if err != nil {
		return StatusFailed, err
	}

	externalID, done, err := s.archive(ctx, req)
	if err != nil {
		return StatusFailed, err
	}
	if done {
		return StatusRecorded, nil
	}

	receipt, err := s.ledger.RecordProof(ctx, proofHash)
	if err != nil {
		metrics.ObserveProof(string(StatusFailed))
		s.logger.Warn("proof ledger write failed",
			zap.String("proof_id", externalID),
			zap.String("identity", req.Identity),
			zap.Error(err),
		)
		if s.repo != nil {
			// the caller's context may already be done
			markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if markErr := s.repo.MarkFailed(markCtx, externalID, err.Error()); markErr != nil {
				s.logger.Error("failed to mark proof failed", zap.String("proof_id", externalID), zap.Error(markErr))
			}
		}
		return StatusFailed, fmt.Errorf("failed to record proof on ledger: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.MarkRecorded(ctx, externalID, receipt.TxHash, receipt.BlockNumber); err != nil {
			// The transaction is mined; a retry would only hit the duplicate path.
			s.logger.Error("failed to update archived proof",
				zap.String("proof_id", externalID),
				zap.String("tx_hash", receipt.TxHash),
				zap.Error(err),
			)
		}
	}

	metrics.ObserveProof(string(StatusRecorded))
	s.logger.Info("login proof recorded",
		zap.String("proof_id", externalID),
		zap.String("identity", req.Identity),
		zap.String("address", req.Address),
		zap.String("tx_hash", receipt.TxHash),
		zap.Uint64("block_number", receipt.BlockNumber),
	)

	if s.publisher != nil {
		event := RecordedEvent{
			ProofID:     externalID,
			Identity:    req.Identity,
			Address:     req.Address,
			BindingHash: req.BindingHash,
			TxHash:      receipt.TxHash,
			BlockNumber: receipt.BlockNumber,
			RecordedAt:  s.now().UTC(),
		}
		if err := s.publisher.PublishRecorded(ctx, event); err != nil {
			s.logger.Warn("failed to publish proof event", zap.String("proof_id", externalID), zap.Error(err))
		}
	}

	return StatusRecorded, nil
}

// archive inserts the pending row. On a retry the existing row is reused,
// and done is true when it was already recorded.
func (s *Service) archive(ctx context.Context, req Request) (externalID string, done bool, err error) {
	externalID = uuid.NewString()
	if s.repo == nil {
		return externalID, false, nil
	}

	rec := &Record{
		ExternalID:  externalID,
		ChallengeID: req.ChallengeID,
		Identity:    req.Identity,
		Address:     req.Address,
		BindingHash: req.BindingHash,
		Status:      StatusPending,
		VerifiedAt:  req.VerifiedAt,
	}
	err = s.repo.Create(ctx, rec)
	if err == nil {
		return externalID, false, nil
	}
	if !errors.Is(err, ErrDuplicateProof) {
		return "", false, fmt.Errorf("failed to archive proof: %w", err)
	}

	existing, err := s.repo.GetByBindingHash(ctx, req.BindingHash)
	if err != nil {
		return "", false, fmt.Errorf("failed to load archived proof: %w", err)
	}
	return existing.ExternalID, existing.Status == StatusRecorded, nil
}
