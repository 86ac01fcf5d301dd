// Package crypto provides the cryptographic primitives shared by the
// ledger: SHA-256 hashing, ECDSA secp256k1 signatures, AES-256-GCM
// sealing, and nonce generation.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 digest of data as a lowercase hex string.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the raw SHA-256 digest of data.
func HashBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HashPair hashes two hex-encoded digests concatenated as raw bytes,
// returning a new hex digest. The block package's Merkle folding uses
// its own byte-level hashPair, not this function.
func HashPair(leftHex, rightHex string) (string, error) {
	left, err := hex.DecodeString(leftHex)
	if err != nil {
		return "", err
	}
	right, err := hex.DecodeString(rightHex)
	if err != nil {
		return "", err
	}
	combined := make([]byte, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	return Hash(combined), nil
}
