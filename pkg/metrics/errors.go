package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrAlreadyRunning = errors.New("runtime collector already running")
)
