// Package metrics exposes the projector's operational counters, grounded
// on the teacher's extension/prometheus.Metrics (CounterVec/HistogramVec
// registered against a caller-supplied *prometheus.Registry) generalized
// from goengine's notification-queue metrics to the poll/batch/apply loop
// spec.md §4.H describes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventsourcedbank_projector"

// Recorder is what the projector depends on, so it can run against either
// a registered Metrics or Nop without a nil check at every call site.
type Recorder interface {
	ObserveBatch(n int, d time.Duration)
	ObserveEmptyBatch()
	ObserveError()
	SetCheckpointLag(lag int64)
}

// Metrics is the projector's Prometheus instrumentation.
type Metrics struct {
	batchesProcessed *prometheus.CounterVec
	eventsApplied    prometheus.Counter
	batchErrors      prometheus.Counter
	batchDuration    prometheus.Histogram
	checkpointLag    prometheus.Gauge
}

// NewMetrics constructs an unregistered Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		batchesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "counter of projector batches, labeled by outcome",
			},
			[]string{"outcome"},
		),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "counter of events folded into the read model",
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "counter of batches that rolled back and were retried",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "histogram of batch apply-and-commit latencies",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		checkpointLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_lag",
			Help:      "highest known global position minus the last applied checkpoint",
		}),
	}
}

// Register registers every collector against registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{m.batchesProcessed, m.eventsApplied, m.batchErrors, m.batchDuration, m.checkpointLag} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// ObserveBatch records a successfully committed batch of n events taking d.
func (m *Metrics) ObserveBatch(n int, d time.Duration) {
	m.batchesProcessed.With(prometheus.Labels{"outcome": "committed"}).Inc()
	m.eventsApplied.Add(float64(n))
	m.batchDuration.Observe(d.Seconds())
}

// ObserveEmptyBatch records a poll that found nothing to apply.
func (m *Metrics) ObserveEmptyBatch() {
	m.batchesProcessed.With(prometheus.Labels{"outcome": "empty"}).Inc()
}

// ObserveError records a batch that rolled back.
func (m *Metrics) ObserveError() {
	m.batchesProcessed.With(prometheus.Labels{"outcome": "error"}).Inc()
	m.batchErrors.Inc()
}

// SetCheckpointLag records the gap between the highest observed global
// position and the checkpoint just durably written.
func (m *Metrics) SetCheckpointLag(lag int64) {
	m.checkpointLag.Set(float64(lag))
}

var (
	_ Recorder = &Metrics{}
	_ Recorder = &noop{}
)

// Nop is a Recorder whose methods do nothing, used when no registry is
// configured.
var Nop Recorder = &noop{}

type noop struct{}

func (n *noop) ObserveBatch(int, time.Duration) {}
func (n *noop) ObserveEmptyBatch()              {}
func (n *noop) ObserveError()                   {}
func (n *noop) SetCheckpointLag(int64)          {}
