package block

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/agrichain/ledgercore/pkg/crypto"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

func mustKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

func mustTx(t *testing.T, kp *crypto.KeyPair, batchNo string) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New(transaction.BatchCreate, batchNo, 7, "farmer", kp.PublicKeyHex, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New transaction: %v", err)
	}
	if err := tx.Sign(kp.PrivateKeyHex); err != nil {
		t.Fatalf("sign transaction: %v", err)
	}
	return tx
}

func TestGenesisWellFormed(t *testing.T) {
	g, err := NewGenesis()
	if err != nil {
		t.Fatalf("NewGenesis: %v", err)
	}
	if g.PreviousHash != "0" {
		t.Errorf("previous_hash = %q, want \"0\"", g.PreviousHash)
	}
	if g.BlockNumber != 0 {
		t.Errorf("block_number = %d, want 0", g.BlockNumber)
	}
	if g.Difficulty != 0 {
		t.Errorf("difficulty = %d, want 0", g.Difficulty)
	}
	wantRoot := hex.EncodeToString(crypto.HashBytes(nil))
	if g.MerkleRoot != wantRoot {
		t.Errorf("merkle_root = %s, want %s (SHA256(\"\"))", g.MerkleRoot, wantRoot)
	}
	if err := g.Validate("0"); err != nil {
		t.Errorf("genesis Validate: %v", err)
	}
}

func TestMineSatisfiesDifficulty(t *testing.T) {
	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH001")

	b, err := New(1, "genesis-hash-placeholder", []*transaction.Transaction{tx}, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !strings.HasPrefix(b.Hash, "00") {
		t.Fatalf("hash %s does not satisfy difficulty 2", b.Hash)
	}
	if err := b.Validate("genesis-hash-placeholder"); err != nil {
		t.Errorf("Validate after mining: %v", err)
	}
}

func TestValidateRejectsBadPreviousHash(t *testing.T) {
	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH002")

	b, err := New(1, "expected-prev", []*transaction.Transaction{tx}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if err := b.Validate("different-prev"); err == nil {
		t.Fatal("expected B-2 previous_hash mismatch, got nil")
	}
}

func TestValidateRejectsTamperedMerkleRoot(t *testing.T) {
	kp := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH003")

	b, err := New(1, "prev", []*transaction.Transaction{tx}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	b.MerkleRoot = strings.Repeat("f", 64)
	if err := b.Validate("prev"); err == nil {
		t.Fatal("expected B-3 merkle_root mismatch, got nil")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp := mustKeyPair(t)
	validator := mustKeyPair(t)
	tx := mustTx(t, kp, "BATCH004")

	b, err := New(1, "prev", []*transaction.Transaction{tx}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if err := b.Sign(42, validator.PrivateKeyHex, validator.PublicKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := b.Validate("prev"); err != nil {
		t.Fatalf("Validate after signing: %v", err)
	}

	b.ValidatorSignature = strings.Repeat("0", len(b.ValidatorSignature))
	if err := b.Validate("prev"); err == nil {
		t.Fatal("expected B-4 signature verification failure, got nil")
	}
}

func TestEmptyBlockMerkleRootIsHashOfEmptyString(t *testing.T) {
	b, err := New(1, "prev", nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := hex.EncodeToString(crypto.HashBytes(nil))
	if b.MerkleRoot != want {
		t.Errorf("merkle_root = %s, want %s", b.MerkleRoot, want)
	}
}
