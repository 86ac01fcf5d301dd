package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewNonce returns 32 cryptographically random bytes, hex-encoded.
// Used as the transaction replay-protection nonce (§4.1).
func NewNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
