package engine

import (
	"sync"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// MetricsEmitter adapts Metrics to emit.Emitter so it can be wired into an
// Executor (or chained with another Emitter via emit.Event fan-out) without
// the executor knowing about Prometheus.
type MetricsEmitter struct {
	metrics *Metrics
	next    emit.Emitter

	mu    sync.Mutex
	types map[string]BlockType // stepID -> block type, set on step.started
}

// NewMetricsEmitter wraps metrics as an Emitter. next receives every event
// unmodified after metrics are recorded; pass emit.NewNullEmitter() if
// nothing else should observe these events.
func NewMetricsEmitter(metrics *Metrics, next emit.Emitter) *MetricsEmitter {
	if next == nil {
		next = emit.NewNullEmitter()
	}
	return &MetricsEmitter{metrics: metrics, next: next, types: map[string]BlockType{}}
}

func (m *MetricsEmitter) Emit(e emit.Event) {
	switch e.Msg {
	case "step.started":
		if bt, ok := e.Meta["block_type"].(string); ok {
			m.mu.Lock()
			m.types[e.StepID] = BlockType(bt)
			m.mu.Unlock()
		}
	case "step.finished":
		m.mu.Lock()
		bt := m.types[e.StepID]
		delete(m.types, e.StepID)
		m.mu.Unlock()

		status, _ := e.Meta["status"].(string)
		durationMs, _ := e.Meta["duration_ms"].(int64)
		m.metrics.RecordStep(bt, StepStatus(status), time.Duration(durationMs)*time.Millisecond)
	}
	m.next.Emit(e)
}
