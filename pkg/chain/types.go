package chain

import (
	"time"

	"github.com/agrichain/ledgercore/pkg/block"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// AddResult is returned by AddTransaction (§6 add_transaction).
type AddResult struct {
	Transaction  *transaction.Transaction
	Block        *block.Block // non-nil only if this admission triggered an auto-seal
	PendingCount int
}

// Stats is a snapshot of engine state (§6 get_stats).
type Stats struct {
	BlockCount       int
	TransactionCount int
	PendingCount     int
	Difficulty       int
	ValidatorCount   int
}

// Health is the result of one integrity check (§4.7 Integrity loop,
// §6 get_health).
type Health struct {
	Valid     bool
	BlockCount int
	Issues    []string
	CheckedAt time.Time
}
