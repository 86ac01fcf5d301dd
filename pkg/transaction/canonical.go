package transaction

import "github.com/agrichain/ledgercore/pkg/crypto"

// canonicalFields returns the transaction payload in the fixed field
// order given by spec §3, excluding actor_signature and hash — both
// are derived FROM this canonical form and must never feed back into
// it (§4.3: "signature and hash fields themselves are excluded from
// their own inputs").
func (t *Transaction) canonicalFields() []crypto.Field {
	var fromEntity, toEntity any
	if t.FromEntityID != nil {
		fromEntity = *t.FromEntityID
	}
	if t.ToEntityID != nil {
		toEntity = *t.ToEntityID
	}

	return []crypto.Field{
		{Key: "transaction_type", Value: string(t.TransactionType)},
		{Key: "batch_no", Value: t.BatchNo},
		{Key: "actor_user_id", Value: t.ActorUserID},
		{Key: "actor_role", Value: t.ActorRole},
		{Key: "actor_public_key", Value: t.ActorPublicKey},
		{Key: "transaction_data", Value: t.TransactionData},
		{Key: "from_entity_id", Value: fromEntity},
		{Key: "to_entity_id", Value: toEntity},
		{Key: "document_hashes", Value: t.DocumentHashes},
		{Key: "timestamp", Value: t.Timestamp},
		{Key: "nonce", Value: t.Nonce},
	}
}

// Canonical renders the byte-exact JSON form used as input to hashing
// and signing (§4.3). This is the ABI: changing field order,
// timestamp precision, or this method's output invalidates every
// previously issued hash and signature.
func (t *Transaction) Canonical() string {
	return crypto.EncodeObject(t.canonicalFields())
}
