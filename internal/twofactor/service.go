package twofactor

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"time"

	"github.com/ahwlsqja/chainauth/internal/common/errors"
	"github.com/ahwlsqja/chainauth/internal/metrics"
	"github.com/ahwlsqja/chainauth/pkg/ethsig"
	"github.com/ahwlsqja/chainauth/pkg/nonce"
	"github.com/ahwlsqja/chainauth/pkg/ratelimit"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Service implements the challenge/verify protocol.
// Per identity: no challenge -> issued -> consumed or expired.
type Service struct {
	challenges *nonce.Manager
	limiter    ratelimit.Limiter
	verifier   ethsig.Verifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new two-factor service
func NewService(challenges *nonce.Manager, limiter ratelimit.Limiter, verifier ethsig.Verifier, logger *zap.Logger) *Service {
	return &Service{
		challenges: challenges,
		limiter:    limiter,
		verifier:   verifier,
		logger:     logger,
		now:        time.Now,
	}
}

// IssueChallenge issues a fresh challenge for identity, replacing any live one.
// label is an optional human readable hint (the user's email) used for logs only.
func (s *Service) IssueChallenge(ctx context.Context, identity, label string) (*ChallengeResponse, error) {
	if identity == "" {
		return nil, errors.MissingFields("identity")
	}

	c, err := s.challenges.Issue(ctx, identity)
	if err != nil {
		s.logger.Error("failed to issue challenge", zap.String("identity", identity), zap.Error(err))
		return nil, errors.Internal("Failed to issue challenge").WithError(err)
	}

	metrics.ChallengesIssued.Inc()
	s.logger.Info("challenge issued",
		zap.String("identity", identity),
		zap.String("label", label),
		zap.String("challenge_id", c.ID),
		zap.String("nonce_prefix", prefix(c.Nonce)),
		zap.Time("expires_at", c.ExpiresAt),
	)

	return ToChallengeResponse(c), nil
}

// GetChallenge returns the live challenge for identity without consuming it.
func (s *Service) GetChallenge(ctx context.Context, identity string) (*ChallengeResponse, error) {
	if identity == "" {
		return nil, errors.MissingFields("identity")
	}

	c, err := s.challenges.Fetch(ctx, identity)
	if err != nil {
		return nil, s.mapChallengeError(identity, err)
	}
	return ToChallengeResponse(c), nil
}

// VerifyChallenge runs the verification steps in order and stops at the
// first failure:
//  1. required fields
//  2. rate limit on identity
//  3. atomic consume of the identity's challenge
//  4. nonce and binding hash equality
//  5. signature recovery against the claimed address
//
// Step 3 is never undone, so any later failure forces a new challenge.
func (s *Service) VerifyChallenge(ctx context.Context, req *VerifyChallengeRequest) (*Verification, error) {
	v, err := s.verify(ctx, req)
	if err != nil {
		code := errors.CodeInternal
		if appErr, ok := errors.As(err); ok {
			code = appErr.Code
		}
		metrics.ObserveVerification(code)
		s.logger.Warn("verification failed",
			zap.String("identity", req.Identity),
			zap.String("claimed_address", req.ClaimedAddress),
			zap.String("code", code),
		)
		return nil, err
	}

	metrics.ObserveVerification(metrics.ResultSuccess)
	s.logger.Info("wallet signature verified",
		zap.String("identity", v.Identity),
		zap.String("challenge_id", v.ChallengeID),
		zap.String("address", v.RecoveredAddress),
	)
	return v, nil
}

func (s *Service) verify(ctx context.Context, req *VerifyChallengeRequest) (*Verification, error) {
	// 1. Required fields
	if missing := req.missingFields(); len(missing) > 0 {
		return nil, errors.MissingFields(missing...)
	}
	if !common.IsHexAddress(req.ClaimedAddress) {
		return nil, errors.InvalidInput("claimed_address is not a valid Ethereum address")
	}

	// 2. Rate limit
	decision, err := s.limiter.Allow(ctx, req.Identity)
	if err != nil {
		return nil, errors.Internal("Failed to check rate limit").WithError(err)
	}
	if !decision.Allowed {
		metrics.RateLimited.Inc()
		return nil, errors.RateLimited(decision.RetryAfter(s.now()))
	}

	// 3. Consume (single use)
	c, err := s.challenges.Consume(ctx, req.Identity)
	if err != nil {
		return nil, s.mapChallengeError(req.Identity, err)
	}

	// 4. Nonce and binding
	nonceOK := subtle.ConstantTimeCompare([]byte(req.Nonce), []byte(c.Nonce)) == 1
	bindingOK := subtle.ConstantTimeCompare([]byte(req.BindingHash), []byte(c.BindingHash)) == 1
	if !nonceOK || !bindingOK {
		return nil, errors.NonceMismatch()
	}

	// 5. Signature over the exact nonce string
	sig, err := ethsig.DecodeSignature(req.Signature)
	if err != nil {
		return nil, errors.InvalidSignature().WithError(err)
	}
	result, err := s.verifier.Verify([]byte(c.Nonce), sig, req.ClaimedAddress)
	switch {
	case stderrors.Is(err, ethsig.ErrInvalidAddress):
		return nil, errors.InvalidInput("claimed_address is not a valid Ethereum address")
	case err != nil:
		return nil, errors.InvalidSignature().WithError(err)
	case !result.Matched:
		return nil, errors.AddressMismatch()
	}

	return &Verification{
		ChallengeID:      c.ID,
		Identity:         c.Identity,
		RecoveredAddress: result.Recovered.Hex(),
		BindingHash:      c.BindingHash,
		VerifiedAt:       s.now(),
	}, nil
}

func (s *Service) mapChallengeError(identity string, err error) error {
	switch {
	case stderrors.Is(err, nonce.ErrNotFound):
		return errors.ChallengeNotFound()
	case stderrors.Is(err, nonce.ErrExpired):
		return errors.ChallengeExpired()
	default:
		s.logger.Error("challenge store failure", zap.String("identity", identity), zap.Error(err))
		return errors.Internal("Failed to load challenge").WithError(err)
	}
}

// prefix keeps secrets out of logs
func prefix(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
