package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// PipelineMetrics exposes pipeline counters to Prometheus. The underlying
// collectors are safe for concurrent use, so they may be updated directly
// from the coordinator without extra locking.
type PipelineMetrics struct {
	requestsTotal      *prometheus.CounterVec
	latencySeconds     prometheus.Histogram
	queueDepth         prometheus.Gauge
	batchSize          prometheus.Gauge
	batchIntervalMs    prometheus.Gauge
	batchesTotal       prometheus.Counter
	interventionsTotal *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline collectors with the given
// registerer (use prometheus.DefaultRegisterer in main, a fresh registry
// in tests).
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signalpipe_requests_total",
			Help: "Analysis requests by terminal outcome.",
		}, []string{"outcome"}),
		latencySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalpipe_latency_seconds",
			Help:    "End-to-end analysis latency (enqueue to resolution).",
			Buckets: []float64{.005, .01, .025, .05, .1, .15, .2, .3, .5, 1},
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalpipe_queue_depth",
			Help: "Outstanding analysis requests.",
		}),
		batchSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalpipe_batch_size",
			Help: "Current batch size setting.",
		}),
		batchIntervalMs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalpipe_batch_interval_ms",
			Help: "Current batch interval setting in milliseconds.",
		}),
		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalpipe_batches_total",
			Help: "Dispatched batches.",
		}),
		interventionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signalpipe_interventions_total",
			Help: "Emitted interventions by signal type.",
		}, []string{"signal"}),
	}
}

// ObserveOutcome records a terminal request outcome and its latency.
func (pm *PipelineMetrics) ObserveOutcome(outcome string, latency time.Duration) {
	pm.requestsTotal.WithLabelValues(outcome).Inc()
	pm.latencySeconds.Observe(latency.Seconds())
}

// ObserveBatch records a dispatched batch.
func (pm *PipelineMetrics) ObserveBatch() {
	pm.batchesTotal.Inc()
}

// ObserveIntervention records an emitted intervention.
func (pm *PipelineMetrics) ObserveIntervention(signal types.SignalType) {
	pm.interventionsTotal.WithLabelValues(string(signal)).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (pm *PipelineMetrics) SetQueueDepth(depth int) {
	pm.queueDepth.Set(float64(depth))
}

// SetBatchSettings updates the batch parameter gauges.
func (pm *PipelineMetrics) SetBatchSettings(size int, interval time.Duration) {
	pm.batchSize.Set(float64(size))
	pm.batchIntervalMs.Set(float64(interval.Milliseconds()))
}
