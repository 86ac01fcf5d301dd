package health

import "errors"

// ErrNilEngine is returned by NewSupervisor when no chain engine is given.
var ErrNilEngine = errors.New("health: engine cannot be nil")
