package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ProofLogABI is the ABI of the login proof contract.
const ProofLogABI = `[
	{"inputs":[{"internalType":"bytes32","name":"proofHash","type":"bytes32"}],"name":"logProof","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"user","type":"address"},{"indexed":false,"internalType":"bytes32","name":"proofHash","type":"bytes32"},{"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}],"name":"LoginProof","type":"event"}
]`

const (
	DefaultTxTimeout       = 2 * time.Minute
	DefaultPollingInterval = time.Second
)

// Backend is the part of ethclient.Client the writer needs
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthConfig holds the proof contract settings
type EthConfig struct {
	ContractAddress string
	ChainID         int64
	PrivateKey      string
	TxTimeout       time.Duration
	PollingInterval time.Duration
}

// EthWriter implements Writer by calling logProof(bytes32) on the proof contract
type EthWriter struct {
	backend  Backend
	contract common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	abi      abi.ABI
	config   EthConfig
	logger   *zap.Logger

	// serializes nonce assignment for the signer account
	sendMu sync.Mutex
}

// Compile-time interface compliance check
var _ Writer = (*EthWriter)(nil)

// NewEthWriter creates a ledger writer signing with config.PrivateKey
func NewEthWriter(backend Backend, config EthConfig, logger *zap.Logger) (*EthWriter, error) {
	if !common.IsHexAddress(config.ContractAddress) {
		return nil, fmt.Errorf("invalid proof contract address %q", config.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(config.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(ProofLogABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse proof ABI: %w", err)
	}

	if config.TxTimeout <= 0 {
		config.TxTimeout = DefaultTxTimeout
	}
	if config.PollingInterval <= 0 {
		config.PollingInterval = DefaultPollingInterval
	}

	return &EthWriter{
		backend:  backend,
		contract: common.HexToAddress(config.ContractAddress),
		chainID:  big.NewInt(config.ChainID),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		abi:      parsed,
		config:   config,
		logger:   logger,
	}, nil
}

// From returns the signer account
func (w *EthWriter) From() common.Address {
	return w.from
}

// RecordProof sends logProof(proofHash) and waits until it is mined.
func (w *EthWriter) RecordProof(ctx context.Context, proofHash [32]byte) (Receipt, error) {
	data, err := w.abi.Pack("logProof", proofHash)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to pack logProof call: %w", err)
	}

	tx, err := w.send(ctx, data)
	if err != nil {
		return Receipt{}, err
	}

	w.logger.Info("proof transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
	)

	receipt, err := w.waitMined(ctx, tx.Hash())
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (w *EthWriter) send(ctx context.Context, data []byte) (*types.Transaction, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     w.from,
		To:       &w.contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &w.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed, nil
}

func (w *EthWriter) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.TxTimeout)
	defer cancel()

	ticker := time.NewTicker(w.config.PollingInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("%w: %s", ErrTxReverted, txHash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			// still pending
		default:
			w.logger.Warn("receipt lookup failed",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrTxTimeout, txHash.Hex())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
