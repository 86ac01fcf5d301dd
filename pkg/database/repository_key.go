package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agrichain/ledgercore/pkg/keystore"
)

// KeyRepository implements keystore.Store against the user_keys table.
type KeyRepository struct {
	client *Client
}

// NewKeyRepository creates a new key repository.
func NewKeyRepository(client *Client) *KeyRepository {
	return &KeyRepository{client: client}
}

// GetActive returns the current active record for a user.
func (r *KeyRepository) GetActive(ctx context.Context, userID int64) (*keystore.Record, error) {
	query := `
		SELECT key_id, user_id, public_key, encrypted_private_key,
			key_version, is_active, created_at, updated_at
		FROM user_keys
		WHERE user_id = $1 AND is_active = true`

	rec := &keystore.Record{}
	err := r.client.QueryRowContext(ctx, query, userID).Scan(
		&rec.KeyID, &rec.UserID, &rec.PublicKeyHex, &rec.SealedPrivateKey,
		&rec.KeyVersion, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, keystore.ErrKeyMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get active key for user %d: %w", userID, err)
	}
	return rec, nil
}

// Insert creates a brand new key record.
func (r *KeyRepository) Insert(ctx context.Context, rec *keystore.Record) error {
	query := `
		INSERT INTO user_keys (
			key_id, user_id, public_key, encrypted_private_key,
			key_version, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.client.ExecContext(ctx, query,
		rec.KeyID, rec.UserID, rec.PublicKeyHex, rec.SealedPrivateKey,
		rec.KeyVersion, rec.IsActive, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert key for user %d: %w", rec.UserID, err)
	}
	return nil
}

// Rotate deactivates the current active record (if any) and inserts
// rec as the new active one, atomically (the partial unique index on
// (user_id) WHERE is_active=true forbids two active rows at once).
func (r *KeyRepository) Rotate(ctx context.Context, rec *keystore.Record) error {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Tx().ExecContext(ctx,
		`UPDATE user_keys SET is_active = false, updated_at = $2 WHERE user_id = $1 AND is_active = true`,
		rec.UserID, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("deactivate current key for user %d: %w", rec.UserID, err)
	}

	if _, err := tx.Tx().ExecContext(ctx, `
		INSERT INTO user_keys (
			key_id, user_id, public_key, encrypted_private_key,
			key_version, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.KeyID, rec.UserID, rec.PublicKeyHex, rec.SealedPrivateKey,
		rec.KeyVersion, rec.IsActive, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert rotated key for user %d: %w", rec.UserID, err)
	}

	return tx.Commit()
}

// SetActive flips is_active for the user's current record.
func (r *KeyRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	result, err := r.client.ExecContext(ctx,
		`UPDATE user_keys SET is_active = $2, updated_at = now()
		 WHERE user_id = $1 AND key_version = (
		     SELECT key_version FROM user_keys WHERE user_id = $1 ORDER BY key_version DESC LIMIT 1
		 )`,
		userID, active)
	if err != nil {
		return fmt.Errorf("set active=%v for user %d: %w", active, userID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return keystore.ErrKeyMissing
	}
	return nil
}
