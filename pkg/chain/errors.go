package chain

import "errors"

// ErrReplay is returned when a transaction's hash or nonce has
// already been admitted (§7 Replay, P6).
var ErrReplay = errors.New("chain: replay detected")

// ErrRateLimited is returned when an actor's admission window quota
// is exhausted (§7 RateLimited).
var ErrRateLimited = errors.New("chain: rate limit exceeded")

// ErrIntegrityFailed marks a chain validation failure, used to
// trigger auto-recovery in the health supervisor (§7, §4.7).
var ErrIntegrityFailed = errors.New("chain: integrity check failed")

// ErrOperatorOnly is returned when Reset is attempted without
// operator identity (§7 OperatorOnly).
var ErrOperatorOnly = errors.New("chain: operation requires operator identity")

// ErrPersistenceFailed marks a failed durable write; the in-memory
// chain is never advanced when this occurs (§7 PersistenceFailed).
var ErrPersistenceFailed = errors.New("chain: persistence failed")

// ErrNotFound is returned by query operations for an absent block or
// transaction (§7 NotFound).
var ErrNotFound = errors.New("chain: not found")
