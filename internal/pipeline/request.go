package pipeline

import (
	"time"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// Outcome is the terminal resolution of one analysis request. Exactly one
// of Result or Err is meaningful.
type Outcome struct {
	Result types.AnalysisResult
	Err    error
}

// requestState tracks a request through
// Queued -> Batched -> Dispatched -> {Completed | TimedOut | Superseded}.
// Terminal states are final; the future resolves exactly once.
type requestState int

const (
	stateQueued requestState = iota
	stateBatched
	stateDispatched
	stateCompleted
	stateTimedOut
	stateSuperseded
)

// request is the coordinator's record of one in-flight analysis. Owned
// exclusively by the coordinator goroutine until resolved; ownership then
// transfers to the caller through the future channel.
type request struct {
	id         string
	text       string
	meta       map[string]any
	enqueuedAt time.Time
	deadline   time.Time
	state      requestState

	// future is buffered with capacity 1 and written exactly once; the
	// terminal-state guard in resolve makes a second send impossible.
	future chan Outcome

	// heapIndex is the request's slot in the deadline heap, -1 when absent.
	heapIndex int
}

func (r *request) terminal() bool {
	return r.state >= stateCompleted
}
