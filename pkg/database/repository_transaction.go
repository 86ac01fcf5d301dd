package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agrichain/ledgercore/pkg/crypto"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// TransactionRepository handles transaction row persistence and
// reconstruction.
type TransactionRepository struct {
	client *Client
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(client *Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

// insert writes a transaction row within tx, scoped to blockID, and
// returns its surrogate transaction_id (needed by the batch_refs row
// that follows it in the same relational transaction).
func (r *TransactionRepository) insert(ctx context.Context, tx *sql.Tx, blockID int64, t *transaction.Transaction) (int64, error) {
	data, err := json.Marshal(t.TransactionData)
	if err != nil {
		return 0, fmt.Errorf("marshal transaction_data: %w", err)
	}
	var docHashes []byte
	if t.DocumentHashes != nil {
		docHashes, err = json.Marshal(t.DocumentHashes)
		if err != nil {
			return 0, fmt.Errorf("marshal document_hashes: %w", err)
		}
	}

	var fromEntity, toEntity sql.NullInt64
	if t.FromEntityID != nil {
		fromEntity = sql.NullInt64{Int64: *t.FromEntityID, Valid: true}
	}
	if t.ToEntityID != nil {
		toEntity = sql.NullInt64{Int64: *t.ToEntityID, Valid: true}
	}

	query := `
		INSERT INTO transactions (
			transaction_hash, block_id, transaction_type, batch_no,
			actor_user_id, actor_role, actor_public_key, actor_signature,
			transaction_data, from_entity_id, to_entity_id, document_hashes,
			nonce, timestamp, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, true)
		RETURNING transaction_id`

	var transactionID int64
	err = tx.QueryRowContext(ctx, query,
		t.Hash, blockID, string(t.TransactionType), t.BatchNo,
		t.ActorUserID, t.ActorRole, nullString(t.ActorPublicKey), t.ActorSignature,
		data, fromEntity, toEntity, docHashes,
		t.Nonce, t.Timestamp,
	).Scan(&transactionID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction %s: %w", t.Hash, err)
	}
	return transactionID, nil
}

// loadForBlock returns every transaction belonging to blockID, in
// transaction_id (admission) order.
func (r *TransactionRepository) loadForBlock(ctx context.Context, blockID int64) ([]*transaction.Transaction, error) {
	query := `
		SELECT transaction_hash, transaction_type, batch_no, actor_user_id,
			actor_role, actor_public_key, actor_signature, transaction_data,
			from_entity_id, to_entity_id, document_hashes, nonce, timestamp
		FROM transactions
		WHERE block_id = $1
		ORDER BY transaction_id ASC`

	rows, err := r.client.QueryContext(ctx, query, blockID)
	if err != nil {
		return nil, fmt.Errorf("query transactions for block %d: %w", blockID, err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		var (
			txType                string
			actorPublicKey        sql.NullString
			fromEntity, toEntity  sql.NullInt64
			data, docHashes       []byte
		)
		t := &transaction.Transaction{}
		err := rows.Scan(
			&t.Hash, &txType, &t.BatchNo, &t.ActorUserID,
			&t.ActorRole, &actorPublicKey, &t.ActorSignature, &data,
			&fromEntity, &toEntity, &docHashes, &t.Nonce, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.TransactionType = transaction.Type(txType)
		t.ActorPublicKey = actorPublicKey.String
		if fromEntity.Valid {
			id := fromEntity.Int64
			t.FromEntityID = &id
		}
		if toEntity.Valid {
			id := toEntity.Int64
			t.ToEntityID = &id
		}
		if len(data) > 0 {
			var m crypto.CanonicalMap
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("unmarshal transaction_data: %w", err)
			}
			t.TransactionData = m
		}
		if len(docHashes) > 0 {
			var m crypto.CanonicalMap
			if err := json.Unmarshal(docHashes, &m); err != nil {
				return nil, fmt.Errorf("unmarshal document_hashes: %w", err)
			}
			t.DocumentHashes = m
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
