package ethsig

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Result is the outcome of checking a signature against a claimed address.
type Result struct {
	Recovered common.Address
	Claimed   common.Address
	Matched   bool
}

// Verifier defines the interface for personal-sign (EIP-191) signature checks
type Verifier interface {
	// RecoverAddress returns the address whose key signed message
	RecoverAddress(message, signature []byte) (common.Address, error)

	// Verify recovers the signer and compares it to claimed, ignoring case.
	// It does not know about challenges; binding a signature to one is the caller's job.
	Verify(message, signature []byte, claimed string) (Result, error)
}

// Error definitions
var (
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidSignatureLen = errors.New("signature must be 65 bytes")
	ErrInvalidRecoveryID   = errors.New("invalid signature recovery id")
	ErrInvalidAddress      = errors.New("invalid ethereum address")
)
