// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_analytics"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Consumer metrics
	RecordsConsumed   *prometheus.CounterVec
	RecordsSkipped    *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	PersistErrors     prometheus.Counter
	SegmentsPersisted prometheus.Counter
	BatchDuration     prometheus.Histogram

	// Fan-out metrics
	BroadcastTotal    prometheus.Counter
	SendsTotal        prometheus.Counter
	SendFailures      *prometheus.CounterVec
	ConnectionsPruned prometheus.Counter
	BroadcastDuration prometheus.Histogram

	// Push channel metrics
	ConnectionsActive prometheus.Gauge
	ConnectsTotal     prometheus.Counter
	DisconnectsTotal  prometheus.Counter

	// Summarization metrics
	SummarizationsTotal  prometheus.Counter
	SummarizationsFailed prometheus.Counter
	ModelRetries         prometheus.Counter
	ModelLatency         prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_consumed_total",
			Help:      "Total number of event-log records consumed",
		}, []string{"topic"}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of records skipped, by reason",
		}, []string{"reason"}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of records that failed to decode",
		}),
		PersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Total number of transcript segment writes that failed",
		}),
		SegmentsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_persisted_total",
			Help:      "Total number of transcript segments upserted",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of event-log batch processing in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		BroadcastTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast invocations",
		}),
		SendsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Total number of successful per-connection sends",
		}),
		SendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of failed per-connection sends, by kind",
		}, []string{"kind"}),
		ConnectionsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_pruned_total",
			Help:      "Total number of stale connections removed during fan-out",
		}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Duration of a full broadcast in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),

		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open push connections on this instance",
		}),
		ConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of push connections accepted",
		}),
		DisconnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of push connections closed",
		}),

		SummarizationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarizations_total",
			Help:      "Total number of summarization triggers handled",
		}),
		SummarizationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarizations_failed_total",
			Help:      "Total number of summarization triggers abandoned after retries",
		}),
		ModelRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_retries_total",
			Help:      "Total number of retried model invocations",
		}),
		ModelLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Latency of hosted model invocations in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
}

// RecordSendResult records the outcome of one per-connection send.
func (m *Metrics) RecordSendResult(err error, terminal bool) {
	switch {
	case err == nil:
		m.SendsTotal.Inc()
	case terminal:
		m.SendFailures.WithLabelValues("terminal").Inc()
	default:
		m.SendFailures.WithLabelValues("transient").Inc()
	}
}
