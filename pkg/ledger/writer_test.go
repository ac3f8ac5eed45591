package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPrivHex  = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	testAddrHex  = "0x970E8128AB834E8EAC17Ab8E3812F010678CF791"
	testContract = "0x1111111111111111111111111111111111111111"
)

func TestToBytes32(t *testing.T) {
	full := "a23ad6a412bce833fa0dcc42107d3252ef0883388e693ef379051c70adc16cfb"

	t.Run("full length", func(t *testing.T) {
		b, err := ToBytes32(full)
		require.NoError(t, err)
		assert.Equal(t, byte(0xa2), b[0])
		assert.Equal(t, byte(0xfb), b[31])

		prefixed, err := ToBytes32("0x" + full)
		require.NoError(t, err)
		assert.Equal(t, b, prefixed)
	})

	t.Run("short input is right padded", func(t *testing.T) {
		b, err := ToBytes32("0xabcd")
		require.NoError(t, err)
		assert.Equal(t, byte(0xab), b[0])
		assert.Equal(t, byte(0xcd), b[1])
		assert.Equal(t, [30]byte{}, [30]byte(b[2:]))
	})

	t.Run("odd length", func(t *testing.T) {
		b, err := ToBytes32("abc")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xab, 0xc0}, b[:2])
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ToBytes32(full + "00")
		assert.ErrorIs(t, err, ErrInvalidHash)

		_, err = ToBytes32("0xnothex")
		assert.ErrorIs(t, err, ErrInvalidHash)
	})
}

type fakeBackend struct {
	mu            sync.Mutex
	nonce         uint64
	sent          []*types.Transaction
	pendingPolls  int
	receiptStatus uint64
	sendErr       error
	neverMined    bool
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce + uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 30_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.neverMined || b.pendingPolls > 0 {
		b.pendingPolls--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      b.receiptStatus,
		TxHash:      txHash,
		BlockNumber: big.NewInt(42),
		GasUsed:     25_000,
	}, nil
}

func newTestWriter(t *testing.T, backend Backend) *EthWriter {
	t.Helper()
	w, err := NewEthWriter(backend, EthConfig{
		ContractAddress: testContract,
		ChainID:         11155111,
		PrivateKey:      "0x" + testPrivHex,
		TxTimeout:       200 * time.Millisecond,
		PollingInterval: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestNewEthWriter_InvalidConfig(t *testing.T) {
	_, err := NewEthWriter(&fakeBackend{}, EthConfig{ContractAddress: "nope", PrivateKey: testPrivHex}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEthWriter(&fakeBackend{}, EthConfig{ContractAddress: testContract, PrivateKey: "zz"}, zap.NewNop())
	assert.Error(t, err)
}

func TestEthWriter_RecordProof(t *testing.T) {
	backend := &fakeBackend{nonce: 7, pendingPolls: 2, receiptStatus: types.ReceiptStatusSuccessful}
	w := newTestWriter(t, backend)
	assert.Equal(t, testAddrHex, w.From().Hex())

	proofHash, err := ToBytes32("a23ad6a412bce833fa0dcc42107d3252ef0883388e693ef379051c70adc16cfb")
	require.NoError(t, err)

	receipt, err := w.RecordProof(context.Background(), proofHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
	assert.Equal(t, uint64(25_000), receipt.GasUsed)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, receipt.TxHash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, common.HexToAddress(testContract), *tx.To())
	assert.Equal(t, uint64(30_000), tx.Gas())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), tx)
	require.NoError(t, err)
	assert.Equal(t, testAddrHex, sender.Hex())

	parsed, err := abi.JSON(strings.NewReader(ProofLogABI))
	require.NoError(t, err)
	method, err := parsed.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "logProof", method.Name)

	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, proofHash, args[0].([32]byte))
}

func TestEthWriter_Reverted(t *testing.T) {
	backend := &fakeBackend{receiptStatus: types.ReceiptStatusFailed}
	w := newTestWriter(t, backend)

	_, err := w.RecordProof(context.Background(), [32]byte{1})
	assert.ErrorIs(t, err, ErrTxReverted)
}

func TestEthWriter_Timeout(t *testing.T) {
	backend := &fakeBackend{neverMined: true}
	w := newTestWriter(t, backend)

	_, err := w.RecordProof(context.Background(), [32]byte{1})
	assert.ErrorIs(t, err, ErrTxTimeout)
}

func TestEthWriter_SendFailure(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("insufficient funds")}
	w := newTestWriter(t, backend)

	_, err := w.RecordProof(context.Background(), [32]byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestEthWriter_SequentialNonces(t *testing.T) {
	backend := &fakeBackend{receiptStatus: types.ReceiptStatusSuccessful}
	w := newTestWriter(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := w.RecordProof(context.Background(), [32]byte{byte(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	nonces := map[uint64]bool{}
	for _, tx := range backend.sent {
		nonces[tx.Nonce()] = true
	}
	assert.Len(t, nonces, 3)
}
