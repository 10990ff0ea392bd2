// Package emit provides event emission for workflow execution, the
// observability seam between the interpreter/executor and whatever backend
// (logs, traces, broadcast subscribers) wants to watch a run progress.
package emit

import "time"

// Event is an observability event emitted during block execution. The
// execution service's broadcast layer (service.Broadcaster) wraps Events
// destined for HTTP/SSE subscribers in the public envelope described in the
// design (type, runId, timestamp, ...payload); Event itself is the internal
// shape the interpreter and executor emit.
type Event struct {
	RunID     string
	StepID    string
	BlockID   string
	Msg       string // "step.started", "step.finished", "run.started", ...
	Timestamp time.Time
	Meta      map[string]any
}

// Emitter receives events from the interpreter/executor. Implementations
// must not block execution and must not panic.
type Emitter interface {
	Emit(e Event)
}
