package eventfeed

import "headlessrun/internal/escalate"

// Broadcaster publishes escalation progress for a single run.
type Broadcaster struct {
	hub   *Hub
	runID string
}

func NewBroadcaster(hub *Hub, runID string) *Broadcaster {
	return &Broadcaster{hub: hub, runID: runID}
}

func (b *Broadcaster) AttemptStarted(strategy escalate.Strategy) {
	if b == nil || b.hub == nil {
		return
	}
	b.hub.Publish("attempt.started", b.runID, map[string]any{
		"strategy": strategy.String(),
	})
}

func (b *Broadcaster) AttemptFinished(a escalate.Attempt) {
	if b == nil || b.hub == nil {
		return
	}
	b.hub.Publish("attempt.finished", b.runID, map[string]any{
		"strategy":   a.Strategy.String(),
		"exit_code":  a.ExitCode,
		"error_kind": a.ErrorKind(),
		"timed_out":  a.TimedOut,
	})
}

func (b *Broadcaster) PromptAnswered(strategy escalate.Strategy, tag, excerpt string) {
	if b == nil || b.hub == nil {
		return
	}
	b.hub.Publish("prompt.answered", b.runID, map[string]any{
		"strategy": strategy.String(),
		"rule":     tag,
		"excerpt":  excerpt,
	})
}
