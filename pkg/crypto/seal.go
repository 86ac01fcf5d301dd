package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSealFailed is returned when AES-256-GCM decryption fails, e.g. a
// tag mismatch from tampering or a wrong key. Distinct from a
// "user not found" condition — see keystore.ErrKeyMissing.
var ErrSealFailed = errors.New("seal: decryption failed")

// DeriveSealKey derives the AES-256 key for a user from the process
// shared secret, per §4.1: SHA-256(secret ":" user_id).
func DeriveSealKey(secret string, userID int64) [32]byte {
	material := secret + ":" + strconv.FormatInt(userID, 10)
	return sha256.Sum256([]byte(material))
}

// Seal encrypts plaintext under AES-256-GCM with the given key,
// returning "iv_hex:tag_hex:ciphertext_hex".
func Seal(key [32]byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("seal: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("seal: new gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("seal: read iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagLen := gcm.Overhead()
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Unseal decrypts a "iv_hex:tag_hex:ciphertext_hex" payload sealed by
// Seal. Returns ErrSealFailed on a GCM tag mismatch.
func Unseal(key [32]byte, sealed string) ([]byte, error) {
	parts := strings.Split(sealed, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed sealed payload", ErrSealFailed)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv: %v", ErrSealFailed, err)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad tag: %v", ErrSealFailed, err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext: %v", ErrSealFailed, err)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("seal: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: new gcm: %w", err)
	}

	sealedBytes := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealedBytes, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return plaintext, nil
}
