package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ErrInvalidSignature is returned when a signature or key cannot be
// parsed, mirroring the teacher's sentinel-error style.
var ErrInvalidSignature = errors.New("invalid signature or key encoding")

// KeyPair is a secp256k1 ECDSA keypair, hex-encoded for storage and
// wire transport.
type KeyPair struct {
	PrivateKeyHex string
	PublicKeyHex  string
}

// GenerateKeyPair creates a new secp256k1 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return &KeyPair{
		PrivateKeyHex: hex.EncodeToString(priv.Serialize()),
		PublicKeyHex:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}, nil
}

// PublicKeyFromPrivate derives the compressed public key (hex) for a
// hex-encoded private key.
func PublicKeyFromPrivate(privateKeyHex string) (string, error) {
	privBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	priv, pub := btcec.PrivKeyFromBytes(privBytes)
	_ = priv
	return hex.EncodeToString(pub.SerializeCompressed()), nil
}

// Sign signs data (canonical JSON bytes) with a hex-encoded secp256k1
// private key. The data is SHA-256 hashed before the ECDSA step, per
// §4.1. The returned signature is DER-encoded, hex-encoded.
func Sign(privateKeyHex string, data []byte) (string, error) {
	privBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	priv, _ := btcec.PrivKeyFromBytes(privBytes)

	digest := sha256.Sum256(data)
	sig := ecdsa.Sign(priv, digest[:])
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks a DER/hex-encoded secp256k1 signature over data
// against a compressed hex-encoded public key.
func Verify(publicKeyHex string, data []byte, signatureHex string) (bool, error) {
	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := sha256.Sum256(data)
	return sig.Verify(digest[:], pub), nil
}

// ValidatePair signs and verifies a canned payload to confirm a
// private/public keypair actually match, per §4.2 `validate_pair`.
func ValidatePair(privateKeyHex, publicKeyHex string) (bool, error) {
	const probe = "ledgercore-keypair-validation-probe-v1"
	sig, err := Sign(privateKeyHex, []byte(probe))
	if err != nil {
		return false, err
	}
	return Verify(publicKeyHex, []byte(probe), sig)
}
