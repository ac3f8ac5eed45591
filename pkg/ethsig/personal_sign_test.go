package ethsig

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivHex = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	testAddrHex = "0x970E8128AB834E8EAC17Ab8E3812F010678CF791"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivHex)
	require.NoError(t, err)
	return key
}

// personalSign signs like a browser wallet: EIP-191 prefix, v in {27, 28}.
func personalSign(t *testing.T, key *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return sig
}

func TestRecoverAddress_RoundTrip(t *testing.T) {
	v := NewEthVerifier()
	key := testKey(t)
	message := []byte("5f1c3e0b6a7d4e2f9c8b1a0d3e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f")

	recovered, err := v.RecoverAddress(message, personalSign(t, key, message))
	require.NoError(t, err)
	assert.Equal(t, testAddrHex, recovered.Hex())
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestRecoverAddress_AcceptsRawRecoveryID(t *testing.T) {
	v := NewEthVerifier()
	message := []byte("hello")

	sig, err := crypto.Sign(accounts.TextHash(message), testKey(t))
	require.NoError(t, err)

	recovered, err := v.RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, testAddrHex, recovered.Hex())
}

func TestRecoverAddress_DoesNotMutateInput(t *testing.T) {
	v := NewEthVerifier()
	message := []byte("hello")
	sig := personalSign(t, testKey(t), message)
	original := append([]byte(nil), sig...)

	_, err := v.RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, original, sig)
}

func TestRecoverAddress_Invalid(t *testing.T) {
	v := NewEthVerifier()
	message := []byte("hello")
	good := personalSign(t, testKey(t), message)

	badV := append([]byte(nil), good...)
	badV[crypto.RecoveryIDOffset] = 35

	zeroRS := make([]byte, crypto.SignatureLength)
	zeroRS[crypto.RecoveryIDOffset] = 27

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", good[:64]},
		{"long", append(append([]byte(nil), good...), 0x00)},
		{"bad recovery id", badV},
		{"zero r and s", zeroRS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.RecoverAddress(message, tt.sig)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestRecoverAddress_DifferentMessage(t *testing.T) {
	v := NewEthVerifier()
	sig := personalSign(t, testKey(t), []byte("nonce-a"))

	recovered, err := v.RecoverAddress([]byte("nonce-b"), sig)
	if err == nil {
		assert.NotEqual(t, testAddrHex, recovered.Hex())
	}
}

func TestVerify(t *testing.T) {
	v := NewEthVerifier()
	message := []byte("challenge")
	sig := personalSign(t, testKey(t), message)

	t.Run("checksummed", func(t *testing.T) {
		res, err := v.Verify(message, sig, testAddrHex)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.Equal(t, testAddrHex, res.Recovered.Hex())
	})

	t.Run("lowercase", func(t *testing.T) {
		res, err := v.Verify(message, sig, strings.ToLower(testAddrHex))
		require.NoError(t, err)
		assert.True(t, res.Matched)
	})

	t.Run("uppercase without prefix", func(t *testing.T) {
		res, err := v.Verify(message, sig, strings.ToUpper(testAddrHex[2:]))
		require.NoError(t, err)
		assert.True(t, res.Matched)
	})

	t.Run("other address", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)

		res, err := v.Verify(message, sig, crypto.PubkeyToAddress(other.PublicKey).Hex())
		require.NoError(t, err)
		assert.False(t, res.Matched)
		assert.Equal(t, testAddrHex, res.Recovered.Hex())
	})

	t.Run("malformed claimed address", func(t *testing.T) {
		_, err := v.Verify(message, sig, "0x1234")
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := v.Verify(message, sig[:10], testAddrHex)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestDecodeSignature(t *testing.T) {
	sig := personalSign(t, testKey(t), []byte("x"))
	encoded := hexutil.Encode(sig)

	got, err := DecodeSignature(encoded)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	got, err = DecodeSignature(strings.TrimPrefix(encoded, "0x"))
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	got, err = DecodeSignature("  " + strings.ToUpper(encoded[2:]) + "\n")
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	for _, bad := range []string{"", "0x", "0xzz", "0x1234", encoded + "00", encoded[:len(encoded)-1]} {
		_, err := DecodeSignature(bad)
		assert.ErrorIs(t, err, ErrInvalidSignature, "input %q", bad)
	}
}
