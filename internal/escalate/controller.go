// Package escalate runs a command through the fixed strategy chain:
// instrumented spawn with prompt detection, blind affirmative feeding,
// pre-seeded input, and finally raw execution. The chain short-circuits
// on the first zero exit; if the last strategy also fails, the final
// exit status is surfaced.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"headlessrun/internal/logging"
	"headlessrun/internal/promptdetect"
	"headlessrun/internal/session"
	"headlessrun/internal/spawn"
)

// preSeededResponses is the fixed input written up front, then closed,
// for the PreSeededInput strategy.
const preSeededResponses = "\n\ny\ny\n1\n\n"

// blindFeedInterval paces the BlindAffirmativeStream writer.
var blindFeedInterval = 500 * time.Millisecond

// Attempt records one escalation step.
type Attempt struct {
	Strategy    Strategy
	ExitCode    int
	TimedOut    bool
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// ErrorKind classifies the attempt failure for logs and history rows.
func (a Attempt) ErrorKind() string {
	switch {
	case a.Err == nil:
		return ""
	case errors.Is(a.Err, ErrAttemptTimeout):
		return "attempt_timeout"
	case errors.Is(a.Err, ErrSpawnFailure):
		return "spawn_failure"
	case errors.Is(a.Err, ErrNonZeroExit):
		return "non_zero_exit"
	default:
		return "unknown"
	}
}

// Sink observes the chain as it runs. All methods are called from the
// controller goroutine, one attempt at a time.
type Sink interface {
	AttemptStarted(strategy Strategy)
	AttemptFinished(a Attempt)
	PromptAnswered(strategy Strategy, tag, excerpt string)
}

type Controller struct {
	Spec      spawn.Spec
	Table     *promptdetect.Table
	Timing    session.Timing
	BufferCap int
	Deadline  time.Duration
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	Sink      Sink
}

// Run executes the escalation chain. It returns the final exit code to
// propagate: 0 when any strategy succeeds, otherwise the last attempt's
// exit code (or 1 when none is available), together with every attempt
// made. Only ErrAllStrategiesExhausted or a context error is returned;
// per-attempt failures are recovered by advancing the chain.
func (c *Controller) Run(ctx context.Context) (int, []Attempt, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if strings.TrimSpace(c.Spec.Command) == "" {
		return 1, nil, fmt.Errorf("%w: command is required", ErrSpawnFailure)
	}

	attempts := make([]Attempt, 0, 4)
	for _, strategy := range Order() {
		if err := ctx.Err(); err != nil {
			return 1, attempts, err
		}
		if c.Sink != nil {
			c.Sink.AttemptStarted(strategy)
		}
		logger.Info("attempt started", "strategy", strategy.String(), "command", c.Spec.Command)
		at := c.attempt(ctx, strategy)
		attempts = append(attempts, at)
		if c.Sink != nil {
			c.Sink.AttemptFinished(at)
		}
		if at.Err == nil {
			logger.Info("command succeeded", "strategy", strategy.String(), "attempts", len(attempts))
			return 0, attempts, nil
		}
		logger.Warn("attempt failed", "strategy", strategy.String(), "exit_code", at.ExitCode, "kind", at.ErrorKind(), "err", at.Err)
	}

	last := attempts[len(attempts)-1]
	code := last.ExitCode
	if code < 0 {
		code = 1
	}
	logger.Error("all strategies exhausted", "exit_code", code)
	return code, attempts, fmt.Errorf("%w: final exit %d", ErrAllStrategiesExhausted, code)
}

func (c *Controller) attempt(ctx context.Context, strategy Strategy) Attempt {
	at := Attempt{Strategy: strategy, StartedAt: time.Now()}

	proc, err := spawn.Start(c.Spec, stdinOptions(strategy))
	if err != nil {
		at.ExitCode = -1
		at.Err = fmt.Errorf("%w: %v", ErrSpawnFailure, err)
		at.CompletedAt = at.StartedAt
		return at
	}

	gov := Governor{Timeout: c.Deadline}
	var waitErr error
	var timedOut bool

	switch strategy {
	case InstrumentedSpawn:
		waitErr, timedOut = gov.Govern(ctx, proc.Kill, func() error {
			res := session.Run(proc, session.Config{
				Detector: promptdetect.NewDetector(c.Table, c.BufferCap),
				Timing:   c.Timing,
				Stdout:   c.Stdout,
				Stderr:   c.Stderr,
				Logger:   c.Logger,
				OnPrompt: func(tag, excerpt string) {
					if c.Sink != nil {
						c.Sink.PromptAnswered(strategy, tag, excerpt)
					}
				},
			})
			return res.WaitErr
		})
	case BlindAffirmativeStream:
		feedCtx, stopFeed := context.WithCancel(ctx)
		go feedBlind(feedCtx, proc.Stdin)
		waitErr, timedOut = gov.Govern(ctx, proc.Kill, func() error {
			return forwardAndWait(proc, c.Stdout, c.Stderr)
		})
		stopFeed()
	default:
		// PreSeededInput and RawExecution differ only in stdin wiring,
		// which stdinOptions already decided.
		waitErr, timedOut = gov.Govern(ctx, proc.Kill, func() error {
			return forwardAndWait(proc, c.Stdout, c.Stderr)
		})
	}

	at.CompletedAt = time.Now()
	at.ExitCode = spawn.ExitCode(waitErr)
	switch {
	case timedOut:
		at.TimedOut = true
		at.Err = fmt.Errorf("%w after %s", ErrAttemptTimeout, gov.effectiveTimeout())
	case at.ExitCode != 0:
		at.Err = fmt.Errorf("%w: exit %d", ErrNonZeroExit, at.ExitCode)
	}
	return at
}

func stdinOptions(strategy Strategy) spawn.Options {
	switch strategy {
	case InstrumentedSpawn, BlindAffirmativeStream:
		return spawn.Options{PipeStdin: true}
	case PreSeededInput:
		return spawn.Options{Stdin: strings.NewReader(preSeededResponses)}
	default:
		return spawn.Options{}
	}
}

func (g Governor) effectiveTimeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultAttemptTimeout
	}
	return g.Timeout
}

// feedBlind writes affirmative and blank lines regardless of output
// content until the process goes away or the attempt ends.
func feedBlind(ctx context.Context, stdin io.WriteCloser) {
	if stdin == nil {
		return
	}
	defer func() { _ = stdin.Close() }()
	ticker := time.NewTicker(blindFeedInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := stdin.Write([]byte("y\n")); err != nil {
				return
			}
			if _, err := stdin.Write([]byte("\n")); err != nil {
				return
			}
		}
	}
}

// forwardAndWait streams both output pipes to the caller's writers, then
// reaps the process. Used by the non-instrumented strategies, which
// forward output but never inspect it.
func forwardAndWait(proc *spawn.Process, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stdout, proc.Stdout)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stderr, proc.Stderr)
	}()
	wg.Wait()
	return proc.Wait()
}
