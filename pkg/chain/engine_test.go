package chain

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agrichain/ledgercore/pkg/block"
	"github.com/agrichain/ledgercore/pkg/crypto"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// fakePersister is an in-memory stand-in for the database-backed
// Persister, used so the engine's reload/persist contracts can be
// exercised without a real Postgres instance.
type fakePersister struct {
	mu         sync.Mutex
	blocks     []*block.Block
	validators []int64
}

func (f *fakePersister) CountBlocks(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocks), nil
}

func (f *fakePersister) LoadBlocks(ctx context.Context) ([]*block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*block.Block, len(f.blocks))
	copy(out, f.blocks)
	return out, nil
}

func (f *fakePersister) PersistBlock(ctx context.Context, b *block.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, b)
	return nil
}

func (f *fakePersister) LoadValidators(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.validators))
	copy(out, f.validators)
	return out, nil
}

func (f *fakePersister) SaveValidators(ctx context.Context, validators []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validators = append([]int64{}, validators...)
	return nil
}

func (f *fakePersister) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = nil
	f.validators = nil
	return nil
}

// BatchReferences derives the batch_refs secondary index from the
// stored blocks, mirroring what a real batch_refs table would already
// hold by the time a transaction's block is persisted.
func (f *fakePersister) BatchReferences(ctx context.Context, batchNo string) ([]BatchReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []BatchReference
	for _, b := range f.blocks {
		for _, tx := range b.Transactions {
			if tx.BatchNo != batchNo {
				continue
			}
			out = append(out, BatchReference{
				Stage:           string(transaction.StageFor(tx.TransactionType)),
				TransactionHash: tx.Hash,
				BlockNumber:     b.BlockNumber,
				CreatedAt:       tx.Timestamp,
			})
		}
	}
	return out, nil
}

func mustTx(t *testing.T, kp *crypto.KeyPair, batchNo string, actorUserID int64) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New(transaction.BatchCreate, batchNo, actorUserID, "farmer", kp.PublicKeyHex, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New transaction: %v", err)
	}
	if err := tx.Sign(kp.PrivateKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tx
}

func mustKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

// Scenario 1: Genesis bootstrap.
func TestGenesisBootstrap(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	blocks := e.GetAllBlocks()
	if len(blocks) != 1 {
		t.Fatalf("block count = %d, want 1", len(blocks))
	}
	g := blocks[0]
	if g.PreviousHash != "0" || g.Difficulty != 0 || len(g.Transactions) != 0 {
		t.Fatalf("genesis malformed: %+v", g)
	}
	wantRoot := crypto.Hash(nil)
	if g.MerkleRoot != wantRoot {
		t.Errorf("merkle_root = %s, want %s", g.MerkleRoot, wantRoot)
	}
	if !e.ValidateChain() {
		t.Error("ValidateChain() = false after genesis bootstrap")
	}
}

// Scenario 2: One cultivation, forced sealing.
func TestOneCultivation(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg, nil, nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH001", 7)

	if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	b, err := e.Seal(context.Background(), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if b == nil {
		t.Fatal("Seal returned nil block")
	}

	genesis, _ := e.GetBlock(0)
	if b.PreviousHash != genesis.Hash {
		t.Errorf("previous_hash = %s, want genesis hash %s", b.PreviousHash, genesis.Hash)
	}
	if !strings.HasPrefix(b.Hash, "00") {
		t.Errorf("hash %s does not satisfy difficulty 2", b.Hash)
	}

	history := e.GetBatchHistory("BATCH001")
	if len(history) != 1 {
		t.Fatalf("batch history length = %d, want 1", len(history))
	}
	if transaction.StageFor(history[0].TransactionType) != transaction.StageCultivation {
		t.Errorf("stage = %s, want cultivation", transaction.StageFor(history[0].TransactionType))
	}
}

// Scenario 3: Replay rejection.
func TestReplayRejected(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH002", 7)

	if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("first AddTransaction: %v", err)
	}
	before := e.Stats().BlockCount

	if _, err := e.AddTransaction(context.Background(), tx, nil); err == nil {
		t.Fatal("expected replay rejection, got nil")
	}
	after := e.Stats().BlockCount
	if before != after {
		t.Errorf("chain length changed on replay: %d -> %d", before, after)
	}
}

// Scenario 4: Rate-limit trip.
func TestRateLimitTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateMax = 100
	cfg.RateWindow = time.Minute
	e := NewEngine(cfg, nil, nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	for i := 0; i < 100; i++ {
		tx := mustTx(t, kp, "BATCH003", 9)
		if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
			t.Fatalf("AddTransaction %d: %v", i, err)
		}
	}

	tx101 := mustTx(t, kp, "BATCH003", 9)
	if _, err := e.AddTransaction(context.Background(), tx101, nil); err == nil {
		t.Fatal("expected 101st transaction to be rate limited")
	}

	e.ClearRateLimits()
	tx102 := mustTx(t, kp, "BATCH003", 9)
	if _, err := e.AddTransaction(context.Background(), tx102, nil); err != nil {
		t.Fatalf("expected admission after ClearRateLimits, got: %v", err)
	}
}

// Scenario 6 (partial): Recovery via Reload after externally mutated
// stored state.
func TestReloadAfterExternalMutation(t *testing.T) {
	persister := &fakePersister{}
	e := NewEngine(DefaultConfig(), nil, persister, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH004", 1)
	if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, err := e.Seal(context.Background(), nil); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !e.ValidateChain() {
		t.Fatal("chain invalid before mutation")
	}

	persister.mu.Lock()
	persister.blocks[1].PreviousHash = "corrupted"
	persister.mu.Unlock()

	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if e.ValidateChain() {
		t.Fatal("expected ValidateChain() = false after corrupting previous_hash")
	}
	if _, err := e.GetBlock(0); err != nil {
		t.Errorf("engine should keep serving queries after failed validation: %v", err)
	}
}

func TestStrictReloadVerificationCatchesTamperedSignature(t *testing.T) {
	persister := &fakePersister{}
	e := NewEngine(DefaultConfig(), nil, persister, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH005", 1)
	if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, err := e.Seal(context.Background(), nil); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	persister.mu.Lock()
	sig := persister.blocks[1].Transactions[0].ActorSignature
	persister.blocks[1].Transactions[0].ActorSignature = sig[:len(sig)-2] + "00"
	persister.mu.Unlock()

	lenient := NewEngine(DefaultConfig(), nil, persister, nil)
	if err := lenient.Initialize(context.Background()); err != nil {
		t.Fatalf("lenient Initialize: %v", err)
	}

	strictCfg := DefaultConfig()
	strictCfg.StrictReloadVerification = true
	strict := NewEngine(strictCfg, nil, persister, nil)
	if err := strict.Initialize(context.Background()); err == nil {
		t.Fatal("expected strict reload to reject a tampered transaction signature")
	}
}

func TestGetBatchReference(t *testing.T) {
	persister := &fakePersister{}
	e := NewEngine(DefaultConfig(), nil, persister, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH006", 1)
	if _, err := e.AddTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, err := e.Seal(context.Background(), nil); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	refs, err := e.GetBatchReference(context.Background(), "BATCH006")
	if err != nil {
		t.Fatalf("GetBatchReference: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	if refs[0].TransactionHash != tx.Hash {
		t.Errorf("transaction_hash = %s, want %s", refs[0].TransactionHash, tx.Hash)
	}
	if refs[0].Stage != string(transaction.StageFor(tx.TransactionType)) {
		t.Errorf("stage = %s, want %s", refs[0].Stage, transaction.StageFor(tx.TransactionType))
	}
	if refs[0].BlockNumber != 1 {
		t.Errorf("block_number = %d, want 1", refs[0].BlockNumber)
	}

	if _, err := e.GetBatchReference(context.Background(), "NO-SUCH-BATCH"); err != nil {
		t.Fatalf("GetBatchReference for unknown batch: %v", err)
	}
}

func TestResetRequiresOperator(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := e.Reset(context.Background(), false); err == nil {
		t.Fatal("expected ErrOperatorOnly for non-operator reset")
	}
	n, err := e.Reset(context.Background(), true)
	if err != nil {
		t.Fatalf("operator Reset: %v", err)
	}
	if n != 1 {
		t.Errorf("blocks after reset = %d, want 1 (genesis)", n)
	}
}
