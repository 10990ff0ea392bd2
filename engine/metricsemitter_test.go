package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

func TestMetricsEmitter_RecordsStepOnFinish(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	next := &capturingEmitter{}
	me := NewMetricsEmitter(metrics, next)

	me.Emit(emit.Event{
		RunID: "run-1", StepID: "step-1", Msg: "step.started",
		Meta: map[string]any{"block_type": "fetch"},
	})
	me.Emit(emit.Event{
		RunID: "run-1", StepID: "step-1", Msg: "step.finished",
		Meta: map[string]any{"status": "completed", "duration_ms": int64(42)},
	})

	if n := testutil.CollectAndCount(metrics.stepLatency); n != 1 {
		t.Fatalf("expected 1 step latency observation, got %d", n)
	}
	if len(next.events) != 2 {
		t.Errorf("expected both events forwarded downstream, got %d", len(next.events))
	}
}

func TestMetricsEmitter_FinishWithoutStartedStillRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	me := NewMetricsEmitter(metrics, nil)

	me.Emit(emit.Event{
		RunID: "run-1", StepID: "step-unseen", Msg: "step.finished",
		Meta: map[string]any{"status": "failed", "duration_ms": int64(1)},
	})

	if n := testutil.CollectAndCount(metrics.stepLatency); n != 1 {
		t.Fatalf("expected a recorded step even with an unknown block type, got %d", n)
	}
}

func TestMetricsEmitter_ClearsTypeAfterFinish(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	me := NewMetricsEmitter(metrics, nil)

	me.Emit(emit.Event{RunID: "run-1", StepID: "s1", Msg: "step.started", Meta: map[string]any{"block_type": "agent"}})
	me.Emit(emit.Event{RunID: "run-1", StepID: "s1", Msg: "step.finished", Meta: map[string]any{"status": "completed", "duration_ms": int64(5)}})

	if len(me.types) != 0 {
		t.Errorf("expected the per-step block type map to be cleared after finish, got %v", me.types)
	}
}

type capturingEmitter struct {
	events []emit.Event
}

func (c *capturingEmitter) Emit(e emit.Event) { c.events = append(c.events, e) }
