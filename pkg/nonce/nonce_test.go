package nonce

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		v, err := Generate()
		require.NoError(t, err)
		assert.Len(t, v, Size*2)

		_, err = hex.DecodeString(v)
		assert.NoError(t, err)

		_, dup := seen[v]
		assert.False(t, dup, "nonce repeated")
		seen[v] = struct{}{}
	}
}

func TestGenerate_ReaderFailure(t *testing.T) {
	_, err := generate(failingReader{})
	assert.Error(t, err)
}

func TestBind(t *testing.T) {
	issuedAt := time.UnixMilli(1700000000000)

	t.Run("known vector", func(t *testing.T) {
		assert.Equal(t,
			"a23ad6a412bce833fa0dcc42107d3252ef0883388e693ef379051c70adc16cfb",
			Bind("abc", issuedAt, "u1"))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Bind("abc", issuedAt, "u1"), Bind("abc", issuedAt, "u1"))
	})

	t.Run("any argument changes the hash", func(t *testing.T) {
		base := Bind("abc", issuedAt, "u1")
		assert.NotEqual(t, base, Bind("abd", issuedAt, "u1"))
		assert.NotEqual(t, base, Bind("abc", issuedAt.Add(time.Millisecond), "u1"))
		assert.NotEqual(t, base, Bind("abc", issuedAt, "u2"))
	})

	t.Run("sub-millisecond part ignored", func(t *testing.T) {
		assert.Equal(t, Bind("abc", issuedAt, "u1"), Bind("abc", issuedAt.Add(500*time.Microsecond), "u1"))
	})
}

func TestChallenge_Expired(t *testing.T) {
	now := time.Now()
	c := Challenge{IssuedAt: now, ExpiresAt: now.Add(DefaultTTL)}

	assert.False(t, c.Expired(now))
	assert.False(t, c.Expired(now.Add(DefaultTTL)))
	assert.True(t, c.Expired(now.Add(DefaultTTL+time.Millisecond)))
}
