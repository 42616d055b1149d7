package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns a hex-encoded random token of n bytes. Used for both
// verification and reset tokens.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
