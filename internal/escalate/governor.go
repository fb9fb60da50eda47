package escalate

import (
	"context"
	"errors"
	"time"
)

// DefaultAttemptTimeout bounds one attempt when no explicit deadline is
// configured.
const DefaultAttemptTimeout = 5 * time.Minute

// Governor enforces the hard wall-clock bound on a single execution
// attempt. One Governor instance per in-flight attempt; it never spans
// attempts.
type Governor struct {
	Timeout time.Duration
}

// Govern runs fn and, if the deadline expires first, invokes kill and
// then still waits for fn to return so the attempt's process is fully
// reaped. The timer stops the instant fn returns by any other path.
// The second return reports whether the deadline fired.
func (g Governor) Govern(parent context.Context, kill func() error, fn func() error) (error, bool) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err, false
	case <-ctx.Done():
		if kill != nil {
			_ = kill()
		}
		err := <-done
		return err, errors.Is(ctx.Err(), context.DeadlineExceeded)
	}
}
