package keystore

import "context"

// Store is the durable persistence boundary for key records,
// implemented by pkg/database.KeyRepository. Defining it here (rather
// than importing the database package) keeps the keystore's
// lifecycle logic testable against an in-memory fake.
type Store interface {
	// GetActive returns the current active record for a user, or
	// ErrKeyMissing if there is none (Manager checks for it with
	// errors.Is).
	GetActive(ctx context.Context, userID int64) (*Record, error)

	// Insert creates a brand new key record (key_version=1, active).
	Insert(ctx context.Context, rec *Record) error

	// Rotate deactivates the current active record (if any) and
	// inserts a new one with an incremented key_version, atomically.
	Rotate(ctx context.Context, rec *Record) error

	// SetActive flips is_active for the user's current record.
	SetActive(ctx context.Context, userID int64, active bool) error
}
