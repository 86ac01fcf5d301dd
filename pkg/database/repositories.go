package database

import (
	"context"
	"fmt"

	"github.com/agrichain/ledgercore/pkg/block"
	"github.com/agrichain/ledgercore/pkg/chain"
)

// Repositories aggregates every table-scoped repository behind the
// single persistence seam the chain engine and key manager depend on
// (chain.Persister and keystore.Store respectively).
type Repositories struct {
	client       *Client
	Blocks       *BlockRepository
	Transactions *TransactionRepository
	BatchRefs    *BatchRefRepository
	Keys         *KeyRepository
	Metadata     *MetadataRepository
}

// NewRepositories creates all repositories over a single client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		client:       client,
		Blocks:       NewBlockRepository(client),
		Transactions: NewTransactionRepository(client),
		BatchRefs:    NewBatchRefRepository(client),
		Keys:         NewKeyRepository(client),
		Metadata:     NewMetadataRepository(client),
	}
}

// CountBlocks satisfies chain.Persister.
func (r *Repositories) CountBlocks(ctx context.Context) (int, error) {
	return r.Blocks.CountBlocks(ctx)
}

// LoadBlocks satisfies chain.Persister: every block, each with its
// transactions attached, in block_number order.
func (r *Repositories) LoadBlocks(ctx context.Context) ([]*block.Block, error) {
	blocks, blockIDs, err := r.Blocks.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i, b := range blocks {
		txs, err := r.Transactions.loadForBlock(ctx, blockIDs[i])
		if err != nil {
			return nil, fmt.Errorf("load transactions for block %d: %w", b.BlockNumber, err)
		}
		b.Transactions = txs
	}
	return blocks, nil
}

// PersistBlock satisfies chain.Persister: writes the block, its
// transactions and their batch_refs rows in one relational
// transaction (§4.7 Write-through). On any failure the transaction is
// rolled back and the caller's in-memory chain is left untouched.
func (r *Repositories) PersistBlock(ctx context.Context, b *block.Block) error {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin persist transaction: %w", err)
	}
	defer tx.Rollback()

	blockID, err := r.Blocks.insert(ctx, tx.Tx(), b)
	if err != nil {
		return err
	}

	for _, t := range b.Transactions {
		transactionID, err := r.Transactions.insert(ctx, tx.Tx(), blockID, t)
		if err != nil {
			return err
		}
		if err := r.BatchRefs.insert(ctx, tx.Tx(), blockID, transactionID, t); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// BatchReferences satisfies chain.Persister: the batch_refs secondary
// index for batchNo, read straight from the durable store rather than
// reconstructed from the in-memory chain (§6 get_batch_reference).
func (r *Repositories) BatchReferences(ctx context.Context, batchNo string) ([]chain.BatchReference, error) {
	entries, err := r.BatchRefs.History(ctx, batchNo)
	if err != nil {
		return nil, err
	}
	out := make([]chain.BatchReference, len(entries))
	for i, e := range entries {
		out[i] = chain.BatchReference{
			Stage:           e.Stage,
			TransactionHash: e.TransactionHash,
			BlockNumber:     e.BlockNumber,
			CreatedAt:       e.CreatedAt,
		}
	}
	return out, nil
}

// LoadValidators satisfies chain.Persister.
func (r *Repositories) LoadValidators(ctx context.Context) ([]int64, error) {
	return r.Metadata.LoadValidators(ctx)
}

// SaveValidators satisfies chain.Persister.
func (r *Repositories) SaveValidators(ctx context.Context, validators []int64) error {
	return r.Metadata.SaveValidators(ctx, validators)
}

// Reset satisfies chain.Persister (§4.7 Reset): deletes batch_refs,
// then transactions, then blocks, in one relational transaction so a
// crash mid-reset can never leave orphaned rows behind.
func (r *Repositories) Reset(ctx context.Context) error {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM batch_refs`,
		`DELETE FROM transactions`,
		`DELETE FROM blocks`,
	} {
		if _, err := tx.Tx().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %s: %w", stmt, err)
		}
	}

	return tx.Commit()
}
