package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per session token, well above the
// 122-bit floor that makes collision retries unnecessary.
const tokenBytes = 32

// NewToken returns a cryptographically random opaque bearer token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
