package transaction

import (
	"fmt"
	"time"

	"github.com/agrichain/ledgercore/pkg/crypto"
)

// FutureTolerance is the maximum allowed clock skew before a
// transaction's timestamp is rejected outright (§3 T-4).
const FutureTolerance = 60 * time.Second

// StaleWarning is the age past which a transaction's timestamp is
// logged as suspicious but still accepted (§3 T-4).
const StaleWarning = 24 * time.Hour

// New constructs a transaction: generates its nonce, stamps the
// current time, and computes its hash. The caller still must call
// Sign before the transaction is admissible (T-2).
func New(txType Type, batchNo string, actorUserID int64, actorRole, actorPublicKey string,
	data crypto.CanonicalMap, fromEntityID, toEntityID *int64, documentHashes crypto.CanonicalMap) (*Transaction, error) {

	if !txType.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction_type %q", ErrInvalid, txType)
	}
	if batchNo == "" {
		return nil, fmt.Errorf("%w: batch_no is required", ErrInvalid)
	}
	if actorUserID == 0 {
		return nil, fmt.Errorf("%w: actor_user_id is required", ErrInvalid)
	}
	if actorRole == "" {
		return nil, fmt.Errorf("%w: actor_role is required", ErrInvalid)
	}
	if actorPublicKey == "" {
		return nil, fmt.Errorf("%w: actor_public_key is required", ErrInvalid)
	}

	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("transaction: generate nonce: %w", err)
	}

	t := &Transaction{
		TransactionType: txType,
		BatchNo:         batchNo,
		ActorUserID:     actorUserID,
		ActorRole:       actorRole,
		ActorPublicKey:  actorPublicKey,
		TransactionData: data,
		FromEntityID:    fromEntityID,
		ToEntityID:      toEntityID,
		DocumentHashes:  documentHashes,
		Timestamp:       time.Now(),
		Nonce:           nonce,
	}
	t.RecomputeHash()
	return t, nil
}

// RecomputeHash sets Hash to SHA-256(canonical(payload)) per T-1.
func (t *Transaction) RecomputeHash() {
	t.Hash = crypto.Hash([]byte(t.Canonical()))
}

// Sign signs the canonical payload with the actor's private key and
// stores the resulting signature (§4.1, T-2).
func (t *Transaction) Sign(privateKeyHex string) error {
	sig, err := crypto.Sign(privateKeyHex, []byte(t.Canonical()))
	if err != nil {
		return fmt.Errorf("transaction: sign: %w", err)
	}
	t.ActorSignature = sig
	return nil
}

// VerifySignature checks T-2: the actor_signature verifies against
// actor_public_key over the canonical payload.
func (t *Transaction) VerifySignature() (bool, error) {
	if t.ActorSignature == "" {
		return false, nil
	}
	ok, err := crypto.Verify(t.ActorPublicKey, []byte(t.Canonical()), t.ActorSignature)
	if err != nil {
		return false, fmt.Errorf("transaction: verify signature: %w", err)
	}
	return ok, nil
}

// Validate checks T-1, T-2 and T-4 against now. T-3 (nonce
// uniqueness) is a chain-wide invariant enforced by the replay set,
// not checkable on a single transaction in isolation.
func (t *Transaction) Validate(now time.Time) error {
	if !t.TransactionType.IsValid() {
		return fmt.Errorf("%w: unknown transaction_type %q", ErrInvalid, t.TransactionType)
	}
	if t.BatchNo == "" {
		return fmt.Errorf("%w: batch_no is required", ErrInvalid)
	}
	if t.ActorUserID == 0 {
		return fmt.Errorf("%w: actor_user_id is required", ErrInvalid)
	}
	if t.ActorRole == "" {
		return fmt.Errorf("%w: actor_role is required", ErrInvalid)
	}
	if t.ActorPublicKey == "" {
		return fmt.Errorf("%w: actor_public_key is required", ErrInvalid)
	}
	if t.Nonce == "" {
		return fmt.Errorf("%w: nonce is required", ErrInvalid)
	}

	if t.Timestamp.After(now.Add(FutureTolerance)) {
		return fmt.Errorf("%w: timestamp %s is more than %s in the future", ErrInvalid, t.Timestamp, FutureTolerance)
	}

	expectedHash := crypto.Hash([]byte(t.Canonical()))
	if t.Hash != expectedHash {
		return fmt.Errorf("%w: hash mismatch (T-1)", ErrInvalid)
	}

	verified, err := t.VerifySignature()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !verified {
		return fmt.Errorf("%w: signature verification failed (T-2)", ErrInvalid)
	}

	return nil
}

// IsStale reports whether the transaction's timestamp is old enough
// to warrant a warning (§3 T-4: "now - timestamp > 24h warns but does
// not fail"). Callers log on true; it is never a rejection reason.
func (t *Transaction) IsStale(now time.Time) bool {
	return now.Sub(t.Timestamp) > StaleWarning
}
