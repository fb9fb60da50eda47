package escalate

import "errors"

var (
	// ErrSpawnFailure: the executable could not be located or launched.
	ErrSpawnFailure = errors.New("spawn failure")
	// ErrAttemptTimeout: the deadline governor killed the attempt.
	ErrAttemptTimeout = errors.New("attempt timeout")
	// ErrNonZeroExit: the process ran and exited with failure status.
	ErrNonZeroExit = errors.New("non-zero exit")
	// ErrAllStrategiesExhausted is the only error surfaced to callers;
	// the three above are recovered locally by advancing the chain.
	ErrAllStrategiesExhausted = errors.New("all strategies exhausted")
)
