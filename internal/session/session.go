// Package session drives one instrumented execution attempt: it owns the
// per-attempt state (responding lockout, detection window, timers) and
// processes output-chunk, injection-done, and process-exit events on a
// single goroutine, so none of that state needs locking.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"headlessrun/internal/logging"
	"headlessrun/internal/promptdetect"
	"headlessrun/internal/spawn"
)

type Timing struct {
	// Settle is the wait between detecting a prompt and writing the
	// response, so the child finishes rendering before input arrives.
	Settle time.Duration
	// Keystroke paces multi-character responses; some interactive
	// renderers drop keys that arrive in the same read.
	Keystroke time.Duration
	// Cooldown is the wait after the response before the detection
	// window is cleared and the lockout released.
	Cooldown time.Duration
}

type Config struct {
	Detector *promptdetect.Detector
	Timing   Timing
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	// OnPrompt is invoked for every answered prompt, before injection.
	OnPrompt func(tag, excerpt string)
}

type Result struct {
	ExitCode int
	WaitErr  error
	Prompts  int
}

type event interface{ isEvent() }

type outputEvent struct{ data []byte }
type injectedEvent struct{ tag string }
type exitEvent struct{ err error }

func (outputEvent) isEvent()   {}
func (injectedEvent) isEvent() {}
func (exitEvent) isEvent()     {}

// Run pumps the child's output through the detector and answers prompts
// until the process exits. It does not watch ctx for cancellation: the
// only way to stop a run early is to kill the process, which the
// deadline governor does. All in-flight timers die when Run returns.
func Run(proc *spawn.Process, cfg Config) Result {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Detector == nil {
		cfg.Detector = promptdetect.NewDetector(nil, 0)
	}

	events := make(chan event, 16)
	injectCtx, cancelInject := context.WithCancel(context.Background())
	defer cancelInject()

	var pumps sync.WaitGroup
	pumps.Add(2)
	go pumpStream(proc.Stdout, cfg.Stdout, events, &pumps)
	go pumpStream(proc.Stderr, cfg.Stderr, events, &pumps)
	go func() {
		// Both pipes must be drained before Wait per os/exec semantics.
		pumps.Wait()
		events <- exitEvent{err: proc.Wait()}
	}()

	responding := false
	var res Result
	for {
		switch ev := (<-events).(type) {
		case outputEvent:
			// While a response is in flight the window still accumulates,
			// but no rule may fire.
			if responding {
				cfg.Detector.Append(ev.data)
				continue
			}
			rule, ok := cfg.Detector.Feed(ev.data)
			if !ok {
				continue
			}
			if proc.Stdin == nil {
				logger.Warn("prompt detected but stdin is not writable", "rule", rule.Tag)
				continue
			}
			responding = true
			res.Prompts++
			excerpt := cfg.Detector.Excerpt()
			logger.Info("prompt detected", "rule", rule.Tag, "excerpt", excerpt)
			if cfg.OnPrompt != nil {
				cfg.OnPrompt(rule.Tag, excerpt)
			}
			go inject(injectCtx, proc.Stdin, rule, cfg.Timing, events, logger)
		case injectedEvent:
			cfg.Detector.Clear()
			responding = false
			logger.Debug("response completed", "rule", ev.tag)
		case exitEvent:
			res.WaitErr = ev.err
			res.ExitCode = spawn.ExitCode(ev.err)
			return res
		}
	}
}

// pumpStream forwards every chunk live to the caller's writer and hands
// a copy to the event loop for detection. The detection copy is the one
// the buffer cap later truncates; forwarding is never truncated.
func pumpStream(r io.Reader, forward io.Writer, events chan<- event, wg *sync.WaitGroup) {
	defer wg.Done()
	if r == nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if forward != nil {
				_, _ = forward.Write(buf[:n])
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			events <- outputEvent{data: chunk}
		}
		if err != nil {
			return
		}
	}
}

// inject writes one rule's response after the settle delay, paced per
// character when the rule asks for it, then signals completion after the
// cooldown. ctx is cancelled when the session ends, so no timer outlives
// the governed process.
func inject(ctx context.Context, stdin io.Writer, rule promptdetect.Rule, timing Timing, events chan<- event, logger *slog.Logger) {
	if !sleep(ctx, timing.Settle) {
		return
	}
	var err error
	if rule.Paced {
		for _, r := range string(rule.Response) {
			if _, err = io.WriteString(stdin, string(r)); err != nil {
				break
			}
			if !sleep(ctx, timing.Keystroke) {
				return
			}
		}
	} else {
		_, err = stdin.Write(rule.Response)
	}
	if err != nil {
		// The child may have exited between detection and injection.
		logger.Warn("response write failed", "rule", rule.Tag, "err", err)
	}
	if !sleep(ctx, timing.Cooldown) {
		return
	}
	select {
	case events <- injectedEvent{tag: rule.Tag}:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
