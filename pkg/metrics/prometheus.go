package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastScore        *prometheus.GaugeVec
	anomalies        *prometheus.CounterVec
	alertTransitions *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		observations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustpulse_observations_total",
				Help: "Total number of observations accepted for processing",
			},
			[]string{"producer", "signal"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trustpulse_last_score",
				Help: "Last normalized score for a signal",
			},
			[]string{"signal"},
		),
		anomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustpulse_anomalies_total",
				Help: "Total number of anomaly events by kind",
			},
			[]string{"kind"},
		),
		alertTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustpulse_alert_transitions_total",
				Help: "Total number of alert state transitions by target state",
			},
			[]string{"state"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trustpulse_shard_queue_depth",
				Help: "Current depth of the per-shard ingest queue",
			},
			[]string{"shard"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordObservation records an accepted observation.
func (r *Recorder) RecordObservation(producer, signalKey string) {
	if producer == "" {
		producer = "default"
	}
	r.observations.WithLabelValues(producer, signalKey).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordScore records the last normalized score for a signal.
func (r *Recorder) RecordScore(signalKey string, score float64) {
	r.lastScore.WithLabelValues(signalKey).Set(score)
}

// RecordAnomaly records an emitted anomaly event.
func (r *Recorder) RecordAnomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

// RecordAlertTransition records an alert entering a state.
func (r *Recorder) RecordAlertTransition(state string) {
	r.alertTransitions.WithLabelValues(state).Inc()
}

// RecordQueueDepth records the current ingest queue depth for a shard.
func (r *Recorder) RecordQueueDepth(shard string, depth int) {
	r.queueDepth.WithLabelValues(shard).Set(float64(depth))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
