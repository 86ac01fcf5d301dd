package keystore

import "errors"

// Sentinel errors for key store operations (§4.2, §7).
var (
	// ErrKeyMissing is returned when no key record exists for a user.
	ErrKeyMissing = errors.New("keystore: no key record for user")

	// ErrKeyInactive is returned by Manager.GetPrivate when the store
	// hands back a record whose IsActive is false. The database-backed
	// store's GetActive returns active records only, so with it a
	// deactivated key is reported as ErrKeyMissing instead.
	ErrKeyInactive = errors.New("keystore: key is inactive")

	// ErrDecryptFailed is returned when the sealed private key fails
	// to decrypt (GCM tag mismatch) — distinct from ErrKeyMissing.
	ErrDecryptFailed = errors.New("keystore: failed to decrypt private key")

	// ErrInvalidKeyPair is returned by Generate when a newly
	// produced keypair fails self-validation before being persisted.
	ErrInvalidKeyPair = errors.New("keystore: generated keypair failed validation")
)
