package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy of every opaque secret handed to users
// (verification, reset and refresh tokens): 256 bits.
const TokenBytes = 32

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewOpaqueToken returns a fresh 64-character hex secret.
func NewOpaqueToken() (string, error) { return RandomHex(TokenBytes) }
