package transaction

import (
	"testing"
	"time"

	"github.com/agrichain/ledgercore/pkg/crypto"
)

func mustKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

func TestNewSignVerifyRoundTrip(t *testing.T) {
	kp := mustKeyPair(t)

	tx, err := New(BatchCreate, "BATCH001", 7, "farmer", kp.PublicKeyHex,
		crypto.CanonicalMap{"type_of_fertilizer": "organic"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := tx.Sign(kp.PrivateKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := tx.Validate(time.Now()); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ok, err := tx.VerifySignature()
	if err != nil || !ok {
		t.Fatalf("VerifySignature: ok=%v err=%v", ok, err)
	}
}

func TestValidateRejectsHashTamper(t *testing.T) {
	kp := mustKeyPair(t)
	tx, err := New(HarvestRecord, "BATCH002", 1, "collector", kp.PublicKeyHex, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tx.Sign(kp.PrivateKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tx.BatchNo = "BATCH003" // mutate payload after hashing
	if err := tx.Validate(time.Now()); err == nil {
		t.Fatal("expected hash mismatch error, got nil")
	}
}

func TestValidateRejectsFutureTimestamp(t *testing.T) {
	kp := mustKeyPair(t)
	tx, err := New(BatchCreate, "BATCH004", 1, "farmer", kp.PublicKeyHex, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx.Timestamp = time.Now().Add(2 * time.Hour)
	tx.RecomputeHash()
	if err := tx.Sign(kp.PrivateKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := tx.Validate(time.Now()); err == nil {
		t.Fatal("expected future-timestamp rejection, got nil")
	}
}

func TestValidateRejectsBadSignature(t *testing.T) {
	kp := mustKeyPair(t)
	other := mustKeyPair(t)

	tx, err := New(BatchCreate, "BATCH005", 1, "farmer", kp.PublicKeyHex, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tx.Sign(other.PrivateKeyHex); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := tx.Validate(time.Now()); err == nil {
		t.Fatal("expected signature verification failure, got nil")
	}
}

func TestCanonicalIsDeterministic(t *testing.T) {
	kp := mustKeyPair(t)
	tx, err := New(GradingRecord, "BATCH006", 1, "processor", kp.PublicKeyHex,
		crypto.CanonicalMap{"b": 1, "a": 2}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c1 := tx.Canonical()
	c2 := tx.Canonical()
	if c1 != c2 {
		t.Fatalf("canonical form is not deterministic:\n%s\n%s", c1, c2)
	}
}

func TestStageFor(t *testing.T) {
	cases := map[Type]Stage{
		BatchCreate:          StageCultivation,
		HarvestRecord:        StageHarvest,
		CollectionRecord:     StageCollection,
		TransportStart:       StageTransport,
		TransportEnd:         StageTransport,
		DryingRecord:         StageProcess,
		GradingRecord:        StageProcess,
		PackingRecord:        StageProcess,
		DistributionCollect:  StageDistribute,
		DistributionComplete: StageDistribute,
		ExportCollect:        StageExport,
		ExportRecord:         StageExport,
	}
	for txType, want := range cases {
		if got := StageFor(txType); got != want {
			t.Errorf("StageFor(%s) = %s, want %s", txType, got, want)
		}
	}
}
