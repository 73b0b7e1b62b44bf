package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published     *prometheus.CounterVec
	BatchFailures prometheus.Counter
	BatchDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplydash_audit_outbox_published_total",
			Help: "Total number of audit outbox records produced to Kafka",
		}, []string{"topic"}),
		BatchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_audit_outbox_batch_failures_total",
			Help: "Total number of outbox batches that failed and were left pending",
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplydash_audit_outbox_batch_duration_seconds",
			Help:    "Time spent claiming, producing and marking one outbox batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncPublished(topic string) {
	if m != nil {
		m.Published.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) IncBatchFailures() {
	if m != nil {
		m.BatchFailures.Inc()
	}
}

func (m *Metrics) ObserveBatchDuration(seconds float64) {
	if m != nil {
		m.BatchDuration.Observe(seconds)
	}
}
