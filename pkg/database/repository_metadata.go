package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// MetadataRepository handles the key/value metadata table, currently
// used to persist the validator set between restarts (spec §4.6).
type MetadataRepository struct {
	client *Client
}

// NewMetadataRepository creates a new metadata repository.
func NewMetadataRepository(client *Client) *MetadataRepository {
	return &MetadataRepository{client: client}
}

const validatorsKey = "validators"

// LoadValidators reads the validator set, or an empty slice if unset.
func (r *MetadataRepository) LoadValidators(ctx context.Context) ([]int64, error) {
	var raw string
	err := r.client.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = $1`, validatorsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load validators: %w", err)
	}

	var validators []int64
	if err := json.Unmarshal([]byte(raw), &validators); err != nil {
		return nil, fmt.Errorf("decode validators: %w", err)
	}
	return validators, nil
}

// SaveValidators persists the current validator set.
func (r *MetadataRepository) SaveValidators(ctx context.Context, validators []int64) error {
	raw, err := json.Marshal(validators)
	if err != nil {
		return fmt.Errorf("encode validators: %w", err)
	}

	query := `
		INSERT INTO metadata (key, value, description, updated_at)
		VALUES ($1, $2, 'active validator user IDs', now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	if _, err := r.client.ExecContext(ctx, query, validatorsKey, string(raw)); err != nil {
		return fmt.Errorf("save validators: %w", err)
	}
	return nil
}
