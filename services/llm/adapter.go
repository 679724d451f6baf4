package llm

import (
	"context"
	"errors"
	"fmt"
)

// errCallback marks a failure reported by the caller's EmitFunc. The
// orchestrator stops the whole request when it sees this; it is never
// treated as an upstream failure.
var errCallback = errors.New("stream callback failed")

// protocolAdapter performs one streaming attempt against one model.
//
// Implementations emit zero or more Content events followed by at most one
// Done event, and report how many events were handed to emit. Upstream
// failures come back as returned errors, never as Error events; deciding
// what a failed attempt means is the orchestrator's job.
type protocolAdapter interface {
	streamAttempt(ctx context.Context, conv Conversation, model string, emit EmitFunc) (attemptResult, error)
}

// attemptResult summarizes one attempt regardless of how it ended.
type attemptResult struct {
	events int
	done   bool
}

// produced reports whether the attempt surfaced anything to the consumer.
// One event is enough to commit the request to this candidate.
func (r attemptResult) produced() bool { return r.events > 0 }

// forward hands one event to emit, tagging callback failures with
// errCallback so the orchestrator can tell them apart from upstream ones.
func forward(emit EmitFunc, ev StreamEvent, res *attemptResult) error {
	if err := emit(ev); err != nil {
		return fmt.Errorf("%w: %v", errCallback, err)
	}
	res.events++
	if ev.Type == EventDone {
		res.done = true
	}
	return nil
}
