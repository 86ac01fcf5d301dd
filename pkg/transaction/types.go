// Package transaction implements the supply-chain event record: its
// fields, canonical serialization, hashing, signing and verification
// (spec §3, §4.1, §4.3).
package transaction

import (
	"time"

	"github.com/agrichain/ledgercore/pkg/crypto"
)

// Type is one of the closed set of supply-chain event tags (§3).
type Type string

const (
	BatchCreate         Type = "BATCH_CREATE"
	HarvestRecord       Type = "HARVEST_RECORD"
	CollectionRecord    Type = "COLLECTION_RECORD"
	TransportStart      Type = "TRANSPORT_START"
	TransportEnd        Type = "TRANSPORT_END"
	DryingRecord        Type = "DRYING_RECORD"
	GradingRecord       Type = "GRADING_RECORD"
	PackingRecord       Type = "PACKING_RECORD"
	DistributionCollect Type = "DISTRIBUTION_COLLECT"
	DistributionComplete Type = "DISTRIBUTION_COMPLETE"
	ExportCollect       Type = "EXPORT_COLLECT"
	ExportRecord        Type = "EXPORT_RECORD"
)

// IsValid reports whether t is one of the closed set of event tags.
func (t Type) IsValid() bool {
	switch t {
	case BatchCreate, HarvestRecord, CollectionRecord, TransportStart, TransportEnd,
		DryingRecord, GradingRecord, PackingRecord, DistributionCollect,
		DistributionComplete, ExportCollect, ExportRecord:
		return true
	default:
		return false
	}
}

// Stage is the coarse phase label derived from Type, used for the
// batch_refs secondary index (glossary: "Stage").
type Stage string

const (
	StageCultivation Stage = "cultivation"
	StageHarvest     Stage = "harvest"
	StageCollection  Stage = "collection"
	StageTransport   Stage = "transport"
	StageProcess     Stage = "process"
	StageDistribute  Stage = "distribute"
	StageExport      Stage = "export"
)

// StageFor derives the coarse stage label for a transaction type.
func StageFor(t Type) Stage {
	switch t {
	case BatchCreate:
		return StageCultivation
	case HarvestRecord:
		return StageHarvest
	case CollectionRecord:
		return StageCollection
	case TransportStart, TransportEnd:
		return StageTransport
	case DryingRecord, GradingRecord, PackingRecord:
		return StageProcess
	case DistributionCollect, DistributionComplete:
		return StageDistribute
	case ExportCollect, ExportRecord:
		return StageExport
	default:
		return ""
	}
}

// Transaction is an immutable-once-hashed supply-chain event (§3).
type Transaction struct {
	TransactionType Type                `json:"transaction_type"`
	BatchNo         string              `json:"batch_no"`
	ActorUserID     int64               `json:"actor_user_id"`
	ActorRole       string              `json:"actor_role"`
	ActorPublicKey  string              `json:"actor_public_key"`
	ActorSignature  string              `json:"actor_signature"`
	TransactionData crypto.CanonicalMap `json:"transaction_data"`
	FromEntityID    *int64              `json:"from_entity_id,omitempty"`
	ToEntityID      *int64              `json:"to_entity_id,omitempty"`
	DocumentHashes  crypto.CanonicalMap `json:"document_hashes,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
	Nonce           string              `json:"nonce"`
	Hash            string              `json:"hash"`
}
