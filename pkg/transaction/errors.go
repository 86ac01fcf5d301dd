package transaction

import "errors"

// ErrInvalid is the sentinel returned by Validate for any invariant
// violation (§7 InvalidTransaction): missing required field, bad
// timestamp, hash mismatch, or signature verification failure. Wrap
// it with fmt.Errorf("%w: ...", ErrInvalid, reason) for detail.
var ErrInvalid = errors.New("transaction: invalid")
