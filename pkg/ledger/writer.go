// Package ledger writes login proof hashes to an on-chain log contract.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt describes a mined proof transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// Writer records a 32-byte proof hash on a durable ledger.
type Writer interface {
	RecordProof(ctx context.Context, proofHash [32]byte) (Receipt, error)
}

// Error definitions
var (
	ErrInvalidHash = errors.New("invalid proof hash")
	ErrTxReverted  = errors.New("proof transaction reverted")
	ErrTxTimeout   = errors.New("proof transaction not mined before timeout")
)

// ToBytes32 converts a hex hash into a bytes32 argument.
// The 0x prefix is optional and shorter input is right-padded with zeros.
func ToBytes32(hash string) ([32]byte, error) {
	var out [32]byte

	h := strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	if len(h) > 64 {
		return out, fmt.Errorf("%w: longer than 32 bytes", ErrInvalidHash)
	}
	h += strings.Repeat("0", 64-len(h))

	b, err := hexutil.Decode("0x" + h)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	copy(out[:], b)
	return out, nil
}
