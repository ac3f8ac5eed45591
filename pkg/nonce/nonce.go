package nonce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	// Size is the number of random bytes behind a nonce value (256 bits).
	Size = 32

	// DefaultTTL is how long an issued challenge stays valid
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is the period of the expired-challenge sweep
	DefaultSweepInterval = 5 * time.Minute
)

// Challenge is a single-use nonce issued to one identity.
// At most one challenge exists per identity at any time.
type Challenge struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	Nonce       string    `json:"nonce"`
	BindingHash string    `json:"binding_hash"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Generate returns a fresh nonce: Size random bytes, lowercase hex.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Bind derives the binding hash tying a nonce to its issue time and identity.
// The digest is SHA-256 over nonce || decimal(issuedAt unix millis) || identity,
// lowercase hex.
func Bind(nonce string, issuedAt time.Time, identity string) string {
	h := sha256.New()
	h.Write([]byte(nonce))
	h.Write([]byte(strconv.FormatInt(issuedAt.UnixMilli(), 10)))
	h.Write([]byte(identity))
	return hex.EncodeToString(h.Sum(nil))
}
