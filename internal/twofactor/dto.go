package twofactor

import (
	"time"

	"github.com/ahwlsqja/chainauth/pkg/nonce"
)

// ============================================================================
// Request DTOs
// ============================================================================

// IssueChallengeRequest represents the request body for issuing a challenge
type IssueChallengeRequest struct {
	Identity string `json:"identity" example:"user-42"`
	Email    string `json:"email,omitempty" binding:"omitempty,email" example:"user@example.com"`
}

// GetChallengeRequest represents query parameters for fetching the live challenge
type GetChallengeRequest struct {
	Identity string `form:"identity" example:"user-42"`
}

// VerifyChallengeRequest represents the request body for verifying a signed challenge.
// Presence is checked by the service so that it owns the MISSING_FIELDS decision.
type VerifyChallengeRequest struct {
	Identity       string `json:"identity" example:"user-42"`
	ClaimedAddress string `json:"claimed_address" example:"0x970e8128ab834e8eac17ab8e3812f010678cf791"`
	Nonce          string `json:"nonce" example:"5f1c3e0b6a7d4e2f9c8b1a0d3e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f"`
	BindingHash    string `json:"binding_hash" example:"a23ad6a412bce833fa0dcc42107d3252ef0883388e693ef379051c70adc16cfb"`
	Signature      string `json:"signature" example:"0x3f5c...1b"`
}

// missingFields lists the JSON names of empty required fields
func (r *VerifyChallengeRequest) missingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"identity", r.Identity},
		{"claimed_address", r.ClaimedAddress},
		{"nonce", r.Nonce},
		{"binding_hash", r.BindingHash},
		{"signature", r.Signature},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ============================================================================
// Response DTOs
// ============================================================================

// ChallengeResponse represents an issued challenge. Timestamps are unix milliseconds.
type ChallengeResponse struct {
	Nonce       string `json:"nonce" example:"5f1c3e0b6a7d4e2f9c8b1a0d3e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f"`
	BindingHash string `json:"binding_hash" example:"a23ad6a412bce833fa0dcc42107d3252ef0883388e693ef379051c70adc16cfb"`
	IssuedAt    int64  `json:"issued_at" example:"1700000000000"`
	ExpiresAt   int64  `json:"expires_at" example:"1700000300000"`
}

// ToChallengeResponse converts a challenge to its response form
func ToChallengeResponse(c nonce.Challenge) *ChallengeResponse {
	return &ChallengeResponse{
		Nonce:       c.Nonce,
		BindingHash: c.BindingHash,
		IssuedAt:    c.IssuedAt.UnixMilli(),
		ExpiresAt:   c.ExpiresAt.UnixMilli(),
	}
}

// VerifyChallengeResponse represents a successful verification
type VerifyChallengeResponse struct {
	Matched          bool           `json:"matched" example:"true"`
	RecoveredAddress string         `json:"recovered_address" example:"0x970E8128AB834E8EAC17Ab8E3812F010678CF791"`
	Proof            *ProofResponse `json:"proof,omitempty"`
}

// ProofResponse reports what happened to the login proof
type ProofResponse struct {
	Status string `json:"status" example:"queued"`
}

// Verification is the outcome of a successful verification
type Verification struct {
	ChallengeID      string
	Identity         string
	RecoveredAddress string
	BindingHash      string
	VerifiedAt       time.Time
}

// ToVerifyChallengeResponse converts a verification to its response form
func ToVerifyChallengeResponse(v *Verification, proofStatus string) *VerifyChallengeResponse {
	resp := &VerifyChallengeResponse{
		Matched:          true,
		RecoveredAddress: v.RecoveredAddress,
	}
	if proofStatus != "" {
		resp.Proof = &ProofResponse{Status: proofStatus}
	}
	return resp
}
