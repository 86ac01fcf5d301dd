// Package block assembles admitted transactions into a mined, signed,
// sealed unit of the chain (spec §3, §4.4, §4.5).
package block

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agrichain/ledgercore/pkg/crypto"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// State is a block's position in the Draft -> Mined -> Signed(optional)
// -> Sealed state machine (§4.5).
type State string

const (
	StateDraft  State = "draft"
	StateMined  State = "mined"
	StateSigned State = "signed"
	StateSealed State = "sealed"
)

// Block is a sealed-once-appended unit of the chain (§3).
type Block struct {
	BlockNumber        int64                      `json:"block_number"`
	PreviousHash       string                     `json:"previous_hash"`
	MerkleRoot         string                     `json:"merkle_root"`
	Timestamp          time.Time                  `json:"timestamp"`
	Nonce              int64                      `json:"nonce"`
	Difficulty         int                        `json:"difficulty"`
	ValidatorUserID    *int64                     `json:"validator_user_id,omitempty"`
	ValidatorPublicKey string                     `json:"validator_public_key,omitempty"`
	ValidatorSignature string                     `json:"validator_signature,omitempty"`
	Transactions       []*transaction.Transaction `json:"transactions"`
	Hash               string                     `json:"hash"`
	State              State                      `json:"state"`
}

// NewGenesis builds block 0: previous_hash "0", difficulty 0, no
// transactions, merkle_root = SHA256("") (§4.4 rule 1). Genesis skips
// mining (§4.5) and is sealed immediately.
func NewGenesis() (*Block, error) {
	root, err := MerkleRoot(nil)
	if err != nil {
		return nil, err
	}
	b := &Block{
		BlockNumber:  0,
		PreviousHash: "0",
		MerkleRoot:   hex.EncodeToString(root),
		Timestamp:    time.Now(),
		Nonce:        0,
		Difficulty:   0,
		Transactions: []*transaction.Transaction{},
		State:        StateDraft,
	}
	b.RecomputeHash()
	b.State = StateSealed
	return b, nil
}

// New assembles a draft non-genesis block from an ordered slice of
// admitted transactions (§4.6 step 5: "Instantiate block").
func New(blockNumber int64, previousHash string, txs []*transaction.Transaction, difficulty int) (*Block, error) {
	if blockNumber <= 0 {
		return nil, fmt.Errorf("%w: non-genesis block_number must be >= 1", ErrInvalid)
	}
	if previousHash == "" {
		return nil, fmt.Errorf("%w: previous_hash is required", ErrInvalid)
	}

	root, err := merkleRootOf(txs)
	if err != nil {
		return nil, err
	}

	b := &Block{
		BlockNumber:  blockNumber,
		PreviousHash: previousHash,
		MerkleRoot:   hex.EncodeToString(root),
		Timestamp:    time.Now(),
		Nonce:        0,
		Difficulty:   difficulty,
		Transactions: txs,
		State:        StateDraft,
	}
	b.RecomputeHash()
	return b, nil
}

func merkleRootOf(txs []*transaction.Transaction) ([]byte, error) {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leafBytes, err := hex.DecodeString(tx.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d has malformed hash: %v", ErrInvalid, i, err)
		}
		leaves[i] = leafBytes
	}
	return MerkleRoot(leaves)
}

// RecomputeHash sets Hash per §3: SHA-256 over the canonical
// serialization of the block-identity fields.
func (b *Block) RecomputeHash() {
	b.Hash = crypto.Hash([]byte(b.Canonical()))
}

// Sign attaches the producing validator's signature over the B-4
// payload (§4.5 Signed state). Only meaningful once mining (or, for
// genesis, construction) has settled Hash. Sign does not recompute
// Hash, so Hash covers validator_user_id and validator_public_key only
// if they already held these values when the block was mined.
func (b *Block) Sign(userID int64, privateKeyHex, publicKeyHex string) error {
	sig, err := crypto.Sign(privateKeyHex, []byte(b.SignaturePayload()))
	if err != nil {
		return fmt.Errorf("block: sign: %w", err)
	}
	b.ValidatorUserID = &userID
	b.ValidatorPublicKey = publicKeyHex
	b.ValidatorSignature = sig
	b.State = StateSigned
	return nil
}

// VerifySignature checks B-4: if a validator_signature is present, it
// verifies against validator_public_key over the signature payload. A
// block with no signature trivially satisfies B-4 ("if present").
func (b *Block) VerifySignature() (bool, error) {
	if b.ValidatorSignature == "" {
		return true, nil
	}
	return crypto.Verify(b.ValidatorPublicKey, []byte(b.SignaturePayload()), b.ValidatorSignature)
}

// Seal marks the block appended and read-only (§4.5).
func (b *Block) Seal() {
	b.State = StateSealed
}

// Validate checks B-1..B-4 of b in isolation, given the immediately
// preceding block's hash ("0" for genesis). Block-number monotonicity
// across the whole chain is ValidateChain's responsibility, not this
// method's.
func (b *Block) Validate(previousHash string) error {
	if b.BlockNumber == 0 {
		if b.PreviousHash != "0" {
			return fmt.Errorf("%w: genesis previous_hash must be \"0\"", ErrInvalid)
		}
	} else {
		if b.Difficulty > 0 {
			prefix := zeroPrefix(b.Difficulty)
			if len(b.Hash) < len(prefix) || b.Hash[:len(prefix)] != prefix {
				return fmt.Errorf("%w: hash does not satisfy difficulty %d (B-1)", ErrInvalid, b.Difficulty)
			}
		}
		if b.PreviousHash != previousHash {
			return fmt.Errorf("%w: previous_hash mismatch (B-2)", ErrInvalid)
		}
	}

	root, err := merkleRootOf(b.Transactions)
	if err != nil {
		return err
	}
	if b.MerkleRoot != hex.EncodeToString(root) {
		return fmt.Errorf("%w: merkle_root mismatch (B-3)", ErrInvalid)
	}

	verified, err := b.VerifySignature()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !verified {
		return fmt.Errorf("%w: validator_signature verification failed (B-4)", ErrInvalid)
	}

	return nil
}

func zeroPrefix(difficulty int) string {
	prefix := make([]byte, difficulty)
	for i := range prefix {
		prefix[i] = '0'
	}
	return string(prefix)
}
