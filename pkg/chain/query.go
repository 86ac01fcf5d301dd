package chain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agrichain/ledgercore/pkg/block"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// Stats returns a snapshot of the engine's current state (§6
// get_stats).
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	txCount := 0
	for _, b := range e.chain {
		txCount += len(b.Transactions)
	}
	return Stats{
		BlockCount:       len(e.chain),
		TransactionCount: txCount,
		PendingCount:     len(e.pending),
		Difficulty:       e.currentDifficulty,
		ValidatorCount:   len(e.validators),
	}
}

// Health runs the in-memory half of the integrity check (§4.7
// Integrity loop step 1, §6 get_health). The health supervisor adds
// the durable-store comparisons (steps 2-3).
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := Health{CheckedAt: time.Now(), BlockCount: len(e.chain)}
	if err := e.validateChainLocked(); err != nil {
		h.Valid = false
		h.Issues = []string{err.Error()}
	} else {
		h.Valid = true
	}
	return h
}

// GetAllBlocks returns a copy of the sealed chain in block_number
// order (§6 get_all_blocks).
func (e *Engine) GetAllBlocks() []*block.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*block.Block, len(e.chain))
	copy(out, e.chain)
	return out
}

// GetAllTransactions returns every sealed transaction, in block then
// admission order (§6 get_all_transactions).
func (e *Engine) GetAllTransactions() []*transaction.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*transaction.Transaction
	for _, b := range e.chain {
		out = append(out, b.Transactions...)
	}
	return out
}

// GetBlock returns the block at the given number (§6 get_block).
func (e *Engine) GetBlock(blockNumber int64) (*block.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if blockNumber < 0 || int(blockNumber) >= len(e.chain) {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, blockNumber)
	}
	return e.chain[blockNumber], nil
}

// GetTransaction finds a sealed transaction by hash and the block
// that contains it (§6 get_transaction).
func (e *Engine) GetTransaction(hash string) (*transaction.Transaction, *block.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.chain {
		for _, tx := range b.Transactions {
			if tx.Hash == hash {
				return tx, b, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: transaction %s", ErrNotFound, hash)
}

// GetBatchHistory returns every transaction (sealed or still pending)
// for batchNo, ordered by timestamp (§6 get_batch_history).
func (e *Engine) GetBatchHistory(batchNo string) []*transaction.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*transaction.Transaction
	for _, b := range e.chain {
		for _, tx := range b.Transactions {
			if tx.BatchNo == batchNo {
				out = append(out, tx)
			}
		}
	}
	for _, tx := range e.pending {
		if tx.BatchNo == batchNo {
			out = append(out, tx)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// GetBatchReference returns the batch_refs secondary index for
// batchNo, read from the durable store (§6 get_batch_reference). It is
// distinct from GetBatchHistory: this returns the stage/hash/block_number
// index rows directly rather than enriched transactions, and reflects
// only what has actually been persisted (pending, unsealed transactions
// have no batch_refs row yet). Returns an empty slice if the engine has
// no persister (in-memory-only mode).
func (e *Engine) GetBatchReference(ctx context.Context, batchNo string) ([]BatchReference, error) {
	if e.persister == nil {
		return nil, nil
	}
	return e.persister.BatchReferences(ctx, batchNo)
}
