package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agrichain/ledgercore/pkg/transaction"
)

// BatchRefRepository maintains the batch_no→stage secondary index
// (spec §6, batch_refs) used by get_batch_reference.
type BatchRefRepository struct {
	client *Client
}

// NewBatchRefRepository creates a new batch_refs repository.
func NewBatchRefRepository(client *Client) *BatchRefRepository {
	return &BatchRefRepository{client: client}
}

// insert writes one batch_refs row within tx, deriving stage from the
// transaction's type.
func (r *BatchRefRepository) insert(ctx context.Context, tx *sql.Tx, blockID, transactionID int64, t *transaction.Transaction) error {
	query := `
		INSERT INTO batch_refs (batch_no, stage, transaction_id, block_id, transaction_hash)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.ExecContext(ctx, query,
		t.BatchNo, string(transaction.StageFor(t.TransactionType)), transactionID, blockID, t.Hash)
	if err != nil {
		return fmt.Errorf("insert batch_refs for %s: %w", t.Hash, err)
	}
	return nil
}

// History returns every batch_refs row for batchNo in creation order,
// joined against blocks so callers see the chain's block_number rather
// than the table's internal surrogate block_id (get_batch_reference,
// §6).
func (r *BatchRefRepository) History(ctx context.Context, batchNo string) ([]BatchRefEntry, error) {
	query := `
		SELECT br.stage, br.transaction_hash, b.block_number, br.created_at
		FROM batch_refs br
		JOIN blocks b ON b.block_id = br.block_id
		WHERE br.batch_no = $1
		ORDER BY br.ref_id ASC`

	rows, err := r.client.QueryContext(ctx, query, batchNo)
	if err != nil {
		return nil, fmt.Errorf("query batch_refs for %s: %w", batchNo, err)
	}
	defer rows.Close()

	var out []BatchRefEntry
	for rows.Next() {
		var e BatchRefEntry
		if err := rows.Scan(&e.Stage, &e.TransactionHash, &e.BlockNumber, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch_refs: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BatchRefEntry is one row of the batch_no→stage secondary index.
type BatchRefEntry struct {
	Stage           string
	TransactionHash string
	BlockNumber     int64
	CreatedAt       time.Time
}
