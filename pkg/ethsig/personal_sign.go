package ethsig

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthVerifier implements Verifier using go-ethereum's secp256k1 recovery
type EthVerifier struct{}

// Compile-time interface compliance check
var _ Verifier = (*EthVerifier)(nil)

// NewEthVerifier creates a new personal-sign verifier
func NewEthVerifier() *EthVerifier {
	return &EthVerifier{}
}

// RecoverAddress hashes message with the wallet prefix
// "\x19Ethereum Signed Message:\n" + len(message) and recovers the signer.
func (v *EthVerifier) RecoverAddress(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, ErrInvalidSignatureLen)
	}

	// Normalize v value (27/28 -> 0/1)
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, ErrInvalidRecoveryID)
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to recover public key: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

func (v *EthVerifier) Verify(message, signature []byte, claimed string) (Result, error) {
	if !common.IsHexAddress(claimed) {
		return Result{}, ErrInvalidAddress
	}

	recovered, err := v.RecoverAddress(message, signature)
	if err != nil {
		return Result{}, err
	}

	claimedAddr := common.HexToAddress(claimed)
	return Result{
		Recovered: recovered,
		Claimed:   claimedAddr,
		Matched:   recovered == claimedAddr,
	}, nil
}

// DecodeSignature parses a hex signature with or without the 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, ErrInvalidSignatureLen)
	}
	return sig, nil
}
