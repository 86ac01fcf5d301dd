package block

import "errors"

// ErrInvalid is returned for any B-1..B-4 invariant violation.
var ErrInvalid = errors.New("block: invalid")

// ErrNotMined indicates an operation that requires a mined block
// (Signed/Sealed) was attempted on a Draft.
var ErrNotMined = errors.New("block: not yet mined")
