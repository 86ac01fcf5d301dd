package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agrichain/ledgercore/pkg/block"
)

// BlockRepository handles block row persistence and reconstruction.
type BlockRepository struct {
	client *Client
}

// NewBlockRepository creates a new block repository.
func NewBlockRepository(client *Client) *BlockRepository {
	return &BlockRepository{client: client}
}

// CountBlocks reports how many blocks are currently stored.
func (r *BlockRepository) CountBlocks(ctx context.Context) (int, error) {
	var count int
	err := r.client.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count blocks: %w", err)
	}
	return count, nil
}

// insert writes a block row within tx and returns its surrogate
// block_id (needed by the transaction/batch_refs rows that follow it
// in the same relational transaction).
func (r *BlockRepository) insert(ctx context.Context, tx *sql.Tx, b *block.Block) (int64, error) {
	var validatorUserID sql.NullInt64
	if b.ValidatorUserID != nil {
		validatorUserID = sql.NullInt64{Int64: *b.ValidatorUserID, Valid: true}
	}

	query := `
		INSERT INTO blocks (
			block_number, previous_hash, merkle_root, timestamp, nonce,
			difficulty, block_hash, validator_user_id, validator_public_key,
			validator_signature, transaction_count, is_valid
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
		RETURNING block_id`

	var blockID int64
	err := tx.QueryRowContext(ctx, query,
		b.BlockNumber, b.PreviousHash, b.MerkleRoot, b.Timestamp, b.Nonce,
		b.Difficulty, b.Hash, validatorUserID, nullString(b.ValidatorPublicKey),
		nullString(b.ValidatorSignature), len(b.Transactions),
	).Scan(&blockID)
	if err != nil {
		return 0, fmt.Errorf("insert block %d: %w", b.BlockNumber, err)
	}
	return blockID, nil
}

// loadAll returns every block row in block_number order, without
// transactions attached (the caller — Repositories.LoadBlocks —
// attaches them via TransactionRepository.loadForBlock).
func (r *BlockRepository) loadAll(ctx context.Context) ([]*block.Block, []int64, error) {
	query := `
		SELECT block_id, block_number, previous_hash, merkle_root, timestamp,
			nonce, difficulty, block_hash, validator_user_id,
			validator_public_key, validator_signature
		FROM blocks
		ORDER BY block_number ASC`

	rows, err := r.client.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*block.Block
	var blockIDs []int64
	for rows.Next() {
		var blockID int64
		var validatorUserID sql.NullInt64
		var validatorPublicKey, validatorSignature sql.NullString
		b := &block.Block{State: block.StateSealed}

		err := rows.Scan(
			&blockID, &b.BlockNumber, &b.PreviousHash, &b.MerkleRoot, &b.Timestamp,
			&b.Nonce, &b.Difficulty, &b.Hash, &validatorUserID,
			&validatorPublicKey, &validatorSignature,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan block: %w", err)
		}
		if validatorUserID.Valid {
			id := validatorUserID.Int64
			b.ValidatorUserID = &id
		}
		b.ValidatorPublicKey = validatorPublicKey.String
		b.ValidatorSignature = validatorSignature.String

		blocks = append(blocks, b)
		blockIDs = append(blockIDs, blockID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, blockIDs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
