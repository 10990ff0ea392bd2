package emit

import "testing"

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(e Event) { r.events = append(r.events, e) }

func TestMultiEmitter_FansOutToEveryEmitter(t *testing.T) {
	a := &recordingEmitter{}
	b := &recordingEmitter{}
	m := NewMultiEmitter(a, b)

	m.Emit(Event{Msg: "step.started", RunID: "run-1"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both emitters to receive the event, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0].RunID != "run-1" || b.events[0].RunID != "run-1" {
		t.Error("expected the same event to reach every emitter")
	}
}

func TestMultiEmitter_NoEmittersIsANoop(t *testing.T) {
	m := NewMultiEmitter()
	m.Emit(Event{Msg: "run.started"})
}
