package block

import "github.com/agrichain/ledgercore/pkg/crypto"

// canonicalFields returns the block-identity payload in the fixed
// field order given by spec §3, excluding hash itself.
func (b *Block) canonicalFields() []crypto.Field {
	var validatorUserID any
	if b.ValidatorUserID != nil {
		validatorUserID = *b.ValidatorUserID
	}

	return []crypto.Field{
		{Key: "block_number", Value: b.BlockNumber},
		{Key: "previous_hash", Value: b.PreviousHash},
		{Key: "merkle_root", Value: b.MerkleRoot},
		{Key: "timestamp", Value: b.Timestamp},
		{Key: "nonce", Value: b.Nonce},
		{Key: "difficulty", Value: b.Difficulty},
		{Key: "validator_user_id", Value: validatorUserID},
		{Key: "validator_public_key", Value: b.ValidatorPublicKey},
	}
}

// Canonical renders the byte-exact JSON form hashed to produce Hash
// (§3, §4.3). Changing this invalidates every previously mined hash.
func (b *Block) Canonical() string {
	return crypto.EncodeObject(b.canonicalFields())
}

// signaturePayloadFields is the narrower payload the validator
// signature covers (B-4): block_number, previous_hash, merkle_root,
// hash, timestamp.
func (b *Block) signaturePayloadFields() []crypto.Field {
	return []crypto.Field{
		{Key: "block_number", Value: b.BlockNumber},
		{Key: "previous_hash", Value: b.PreviousHash},
		{Key: "merkle_root", Value: b.MerkleRoot},
		{Key: "hash", Value: b.Hash},
		{Key: "timestamp", Value: b.Timestamp},
	}
}

// SignaturePayload renders the B-4 signature payload.
func (b *Block) SignaturePayload() string {
	return crypto.EncodeObject(b.signaturePayloadFields())
}
