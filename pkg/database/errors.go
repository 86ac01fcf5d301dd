package database

import "errors"

// Sentinel errors for repository operations.
var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrBlockNotFound is returned when a block row is not found.
	ErrBlockNotFound = errors.New("block not found")

	// ErrKeyNotFound names the "no active key record" condition.
	// KeyRepository does not return it: it reports a missing active
	// key as keystore.ErrKeyMissing directly.
	ErrKeyNotFound = errors.New("key record not found")
)
