// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bolbharat_orchestrator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Queue metrics
	RecordingsEnqueued prometheus.Counter
	EnqueueConflicts   prometheus.Counter
	QueueDepth         prometheus.Gauge

	// Processing metrics
	ItemsProcessed    *prometheus.CounterVec
	ProcessingLatency prometheus.Histogram
	ClaimRacesLost    prometheus.Counter
	RetriesScheduled  prometheus.Counter

	// Batch cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	CycleBatch    prometheus.Histogram

	// Dependency metrics
	BreakerState  *prometheus.GaugeVec
	BreakerShorts *prometheus.CounterVec

	// Session metrics
	SessionsStarted  *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	ModeDowngrades   *prometheus.CounterVec
	PartialsEmitted  prometheus.Counter
	SessionLatencyMs prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordingsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_enqueued_total",
			Help:      "Total number of recordings enqueued",
		}),
		EnqueueConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_conflicts_total",
			Help:      "Total number of duplicate enqueue attempts rejected",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Pending items observed at the start of the last cycle",
		}),

		ItemsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Items driven to an outcome, by resulting status",
		}, []string{"status"}),
		ProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_latency_seconds",
			Help:      "Per-item processing latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ClaimRacesLost: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_races_lost_total",
			Help:      "Optimistic claims lost to a concurrent worker",
		}),
		RetriesScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Items returned to PENDING for a later cycle",
		}),

		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Batch cycles run, by trigger (interval or threshold)",
		}, []string{"trigger"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Batch cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		CycleBatch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_batch_size",
			Help:      "Items pulled per batch cycle",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
		}, []string{"dependency"}),
		BreakerShorts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_short_circuits_total",
			Help:      "Calls failed fast while a breaker was open",
		}, []string{"dependency"}),

		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Capture sessions started, by initial mode",
		}, []string{"mode"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Currently active real-time sessions",
		}),
		ModeDowngrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_downgrades_total",
			Help:      "Real-time sessions downgraded to batch, by reason",
		}, []string{"reason"}),
		PartialsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partials_emitted_total",
			Help:      "Partial transcripts surfaced from real-time sessions",
		}),
		SessionLatencyMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_latency_ms",
			Help:      "Observed network latency samples in milliseconds",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 3000, 5000, 10000},
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordEnqueue records an enqueue attempt.
func (m *Metrics) RecordEnqueue(conflict bool) {
	if conflict {
		m.EnqueueConflicts.Inc()
		return
	}
	m.RecordingsEnqueued.Inc()
}

// RecordOutcome records an item reaching an outcome with its latency.
func (m *Metrics) RecordOutcome(status string, latencySeconds float64) {
	m.ItemsProcessed.WithLabelValues(status).Inc()
	m.ProcessingLatency.Observe(latencySeconds)
}

// RecordCycle records one batch cycle.
func (m *Metrics) RecordCycle(trigger string, batchSize int, durationSeconds float64) {
	m.CyclesTotal.WithLabelValues(trigger).Inc()
	m.CycleBatch.Observe(float64(batchSize))
	m.CycleDuration.Observe(durationSeconds)
}

// RecordBreakerState records a breaker's current state.
func (m *Metrics) RecordBreakerState(dependency string, state int) {
	m.BreakerState.WithLabelValues(dependency).Set(float64(state))
}

// RecordSessionStart records a capture session starting.
func (m *Metrics) RecordSessionStart(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a capture session ending.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
