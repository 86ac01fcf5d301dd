// Package block provides Merkle root computation for a block's ordered
// transaction hash list.
//
// Adapted from the teacher's standalone Merkle tree (batch-anchoring
// inclusion proofs over arbitrary leaf sets) to the spec's block-local
// Merkle root: Bitcoin-style odd-node duplication, plus the spec's
// explicit empty-leaf-set case (root = SHA256("")), which the teacher
// never needed because anchor batches are never empty.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidLeafHash is returned when a leaf is not a 32-byte hash.
var ErrInvalidLeafHash = errors.New("leaf hash must be 32 bytes")

// MerkleRoot computes the Merkle root over an ordered list of 32-byte
// transaction hashes per spec §4.4. An empty list yields SHA256("").
func MerkleRoot(leaves [][]byte) ([]byte, error) {
	if len(leaves) == 0 {
		empty := sha256.Sum256(nil)
		return empty[:], nil
	}

	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		if len(leaf) != 32 {
			return nil, fmt.Errorf("%w: leaf %d has %d bytes", ErrInvalidLeafHash, i, len(leaf))
		}
		cp := make([]byte, 32)
		copy(cp, leaf)
		level[i] = cp
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				// Odd node: duplicate, Bitcoin-style.
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0], nil
}

// MerkleRootHex computes the Merkle root over hex-encoded transaction
// hashes and returns it hex-encoded.
func MerkleRootHex(leafHex []string) (string, error) {
	leaves := make([][]byte, len(leafHex))
	for i, h := range leafHex {
		b, err := hex.DecodeString(h)
		if err != nil {
			return "", fmt.Errorf("decode leaf %d: %w", i, err)
		}
		leaves[i] = b
	}
	root, err := MerkleRoot(leaves)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(root), nil
}

// hashPair combines two 32-byte hashes into one via SHA256(left||right).
func hashPair(left, right []byte) []byte {
	combined := make([]byte, 64)
	copy(combined[:32], left)
	copy(combined[32:], right)
	sum := sha256.Sum256(combined)
	return sum[:]
}
