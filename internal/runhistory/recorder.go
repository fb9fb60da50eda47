package runhistory

import (
	"log/slog"

	"headlessrun/internal/escalate"
	"headlessrun/internal/logging"
)

// Recorder binds a Store to a single run so it can observe an
// escalation chain. Persistence errors are logged and swallowed; a
// broken history DB must never interrupt a running command.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

func (s *Store) NewRecorder(runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{store: s, runID: runID, logger: logger}
}

func (r *Recorder) AttemptStarted(strategy escalate.Strategy) {}

func (r *Recorder) AttemptFinished(a escalate.Attempt) {
	if r == nil || r.store == nil {
		return
	}
	err := r.store.RecordAttempt(r.runID, a.Strategy.String(), a.ExitCode, a.ErrorKind(), a.TimedOut, a.StartedAt, a.CompletedAt)
	if err != nil {
		r.logger.Warn("failed to record attempt", "run_id", r.runID, "strategy", a.Strategy.String(), "err", err)
	}
}

func (r *Recorder) PromptAnswered(strategy escalate.Strategy, tag, excerpt string) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.RecordPrompt(r.runID, strategy.String(), tag, excerpt); err != nil {
		r.logger.Warn("failed to record prompt", "run_id", r.runID, "rule", tag, "err", err)
	}
}
