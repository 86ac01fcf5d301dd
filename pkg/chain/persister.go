package chain

import (
	"context"
	"time"

	"github.com/agrichain/ledgercore/pkg/block"
)

// Persister is the durable-store seam the engine writes through and
// reloads from (component F). The database package's repository
// aggregator implements this; the engine never touches SQL directly,
// mirroring the keystore.Store split between component B and F.
type Persister interface {
	// CountBlocks reports how many blocks are currently stored.
	CountBlocks(ctx context.Context) (int, error)
	// LoadBlocks returns every block in block_number order, each with
	// its transactions in transaction_id order (§4.7 Startup reload).
	LoadBlocks(ctx context.Context) ([]*block.Block, error)
	// PersistBlock writes b and its transactions in one relational
	// transaction, including the batch_refs secondary index row per
	// transaction (§4.7 Write-through).
	PersistBlock(ctx context.Context, b *block.Block) error
	// LoadValidators reads metadata.validators, or an empty slice if
	// unset.
	LoadValidators(ctx context.Context) ([]int64, error)
	// SaveValidators persists the current validator set to metadata.
	SaveValidators(ctx context.Context, validators []int64) error
	// Reset deletes batch_refs, then transactions, then blocks (§4.7
	// Reset).
	Reset(ctx context.Context) error
	// BatchReferences returns the batch_refs secondary index for
	// batchNo, in creation order (§6 get_batch_reference).
	BatchReferences(ctx context.Context, batchNo string) ([]BatchReference, error)
}

// BatchReference is one row of the batch_no→stage secondary index,
// distinct from GetBatchHistory's enriched transaction view (§6
// get_batch_reference vs get_batch_history).
type BatchReference struct {
	Stage           string
	TransactionHash string
	BlockNumber     int64
	CreatedAt       time.Time
}
