// Package keystore implements the per-actor encrypted key lifecycle
// (§4.2): generate, encrypt-at-rest, rotate, activate/deactivate.
//
// Adapted from the teacher's pkg/crypto/bls.KeyManager — a
// load-or-generate, file-backed BLS key manager — to a
// Postgres-backed, AES-256-GCM-sealed secp256k1 ECDSA key manager. The
// "load or generate, save immediately" idiom survives; the storage
// medium and signature scheme do not.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/agrichain/ledgercore/pkg/crypto"
)

// Manager owns the key lifecycle for all actors. It is safe for
// concurrent use; all durability is delegated to Store, which is
// expected to serialize conflicting writes itself (e.g. via a unique
// partial index on (user_id) WHERE is_active=true).
type Manager struct {
	store  Store
	secret string
	logger *log.Logger
}

// NewManager creates a key manager sealing private keys with the given
// process-wide shared secret (§4.1).
func NewManager(store Store, secret string, logger *log.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("keystore: store cannot be nil")
	}
	if secret == "" {
		return nil, errors.New("keystore: secret cannot be empty")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[KeyStore] ", log.LstdFlags)
	}
	return &Manager{store: store, secret: secret, logger: logger}, nil
}

// Generate creates or rotates the active key for a user (§4.2
// `generate`). If an active record already exists it is deactivated
// and a new record with its key_version incremented is inserted
// (Store.Rotate); otherwise a fresh key_version=1 record is inserted. The plaintext private key is
// returned exactly once, here.
func (m *Manager) Generate(ctx context.Context, userID int64) (*Generated, error) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("keystore: generate keypair: %w", err)
	}

	ok, err := crypto.ValidatePair(pair.PrivateKeyHex, pair.PublicKeyHex)
	if err != nil || !ok {
		return nil, ErrInvalidKeyPair
	}

	sealKey := crypto.DeriveSealKey(m.secret, userID)
	sealed, err := crypto.Seal(sealKey, []byte(pair.PrivateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("keystore: seal private key: %w", err)
	}

	existing, err := m.store.GetActive(ctx, userID)
	if err != nil && !errors.Is(err, ErrKeyMissing) {
		return nil, fmt.Errorf("keystore: lookup active key: %w", err)
	}

	now := time.Now()
	version := 1
	if existing != nil {
		version = existing.KeyVersion + 1
	}

	rec := &Record{
		KeyID:            uuid.New().String(),
		UserID:           userID,
		PublicKeyHex:     pair.PublicKeyHex,
		SealedPrivateKey: sealed,
		KeyVersion:       version,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if existing == nil {
		if err := m.store.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("keystore: insert key record: %w", err)
		}
		m.logger.Printf("generated key for user %d (version 1)", userID)
	} else {
		if err := m.store.Rotate(ctx, rec); err != nil {
			return nil, fmt.Errorf("keystore: rotate key record: %w", err)
		}
		m.logger.Printf("rotated key for user %d (version %d)", userID, version)
	}

	return &Generated{
		PublicKeyHex:  pair.PublicKeyHex,
		PrivateKeyHex: pair.PrivateKeyHex,
		KeyVersion:    version,
	}, nil
}

// GetPublic returns the active public key for a user, or (_, false,
// nil) if none exists.
func (m *Manager) GetPublic(ctx context.Context, userID int64) (string, bool, error) {
	rec, err := m.store.GetActive(ctx, userID)
	if errors.Is(err, ErrKeyMissing) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keystore: get public key: %w", err)
	}
	return rec.PublicKeyHex, true, nil
}

// GetPrivate decrypts and returns the active private key for a user.
// Fails with ErrKeyMissing, ErrKeyInactive, or ErrDecryptFailed.
// ErrKeyInactive occurs only if the store returns an inactive record;
// database.KeyRepository does not, so there a deactivated key yields
// ErrKeyMissing.
func (m *Manager) GetPrivate(ctx context.Context, userID int64) (string, error) {
	rec, err := m.store.GetActive(ctx, userID)
	if errors.Is(err, ErrKeyMissing) {
		return "", ErrKeyMissing
	}
	if err != nil {
		return "", fmt.Errorf("keystore: get private key: %w", err)
	}
	if !rec.IsActive {
		return "", ErrKeyInactive
	}

	sealKey := crypto.DeriveSealKey(m.secret, userID)
	plaintext, err := crypto.Unseal(sealKey, rec.SealedPrivateKey)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// HasActive reports whether a user has an active key record.
func (m *Manager) HasActive(ctx context.Context, userID int64) (bool, error) {
	_, err := m.store.GetActive(ctx, userID)
	if errors.Is(err, ErrKeyMissing) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keystore: has active: %w", err)
	}
	return true, nil
}

// GetInfo returns the public metadata for a user's active key (no
// private key material).
func (m *Manager) GetInfo(ctx context.Context, userID int64) (*Info, error) {
	rec, err := m.store.GetActive(ctx, userID)
	if errors.Is(err, ErrKeyMissing) {
		return nil, ErrKeyMissing
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: get info: %w", err)
	}
	return rec.toInfo(), nil
}

// Deactivate flips is_active to false for a user's current key.
func (m *Manager) Deactivate(ctx context.Context, userID int64) error {
	if err := m.store.SetActive(ctx, userID, false); err != nil {
		return fmt.Errorf("keystore: deactivate: %w", err)
	}
	return nil
}

// Reactivate flips is_active to true for a user's current key.
func (m *Manager) Reactivate(ctx context.Context, userID int64) error {
	if err := m.store.SetActive(ctx, userID, true); err != nil {
		return fmt.Errorf("keystore: reactivate: %w", err)
	}
	return nil
}

// ValidatePair signs-and-verifies a canned payload to confirm a
// private/public keypair actually match (§4.2 `validate_pair`).
func ValidatePair(privateKeyHex, publicKeyHex string) (bool, error) {
	return crypto.ValidatePair(privateKeyHex, publicKeyHex)
}
