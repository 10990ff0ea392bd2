package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus series for run/step execution, namespaced
// "workflow" to mirror the engine's own metric naming style.
type Metrics struct {
	runsActive      prometheus.Gauge
	stepLatency     *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	deferredBranch  *prometheus.CounterVec
	runsTerminal    *prometheus.CounterVec
}

// NewMetrics registers the engine's series with registry. A nil registry
// uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "runs_active",
			Help:      "Number of runs currently executing.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "step_latency_ms",
			Help:      "Block execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"block_type", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "block_retries_total",
			Help:      "Cumulative block retry attempts.",
		}, []string{"block_type"}),
		deferredBranch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "deferred_branches_total",
			Help:      "Deferred-goto branches dispatched.",
		}, []string{"outcome"}),
		runsTerminal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "runs_terminal_total",
			Help:      "Runs reaching a terminal status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) RunStarted() { m.runsActive.Inc() }

func (m *Metrics) RunTerminated(status RunStatus) {
	m.runsActive.Dec()
	m.runsTerminal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) RecordStep(blockType BlockType, status StepStatus, latency time.Duration) {
	m.stepLatency.WithLabelValues(string(blockType), string(status)).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) RecordRetry(blockType BlockType) {
	m.retries.WithLabelValues(string(blockType)).Inc()
}

func (m *Metrics) RecordDeferredBranch(outcome string) {
	m.deferredBranch.WithLabelValues(outcome).Inc()
}
