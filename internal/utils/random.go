package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy of an access token: 24 bytes, 192 bits,
// rendered as 48 hex characters.
const TokenBytes = 24

// RandomHex returns n bytes from crypto/rand encoded as hex.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewTokenString returns a fresh opaque access token string.
func NewTokenString() (string, error) { return RandomHex(TokenBytes) }
