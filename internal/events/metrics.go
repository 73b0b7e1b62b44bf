package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event bus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Published        *prometheus.CounterVec
	Audited          *prometheus.CounterVec
	AuditFailures    *prometheus.CounterVec
	ListenerFailures *prometheus.CounterVec
	PublishDuration  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplydash_events_published_total",
			Help: "Total number of domain events published",
		}, []string{"event"}),
		Audited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplydash_events_audited_total",
			Help: "Total number of domain events whose audit append succeeded",
		}, []string{"event"}),
		AuditFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplydash_events_audit_failures_total",
			Help: "Total number of domain events whose audit append failed",
		}, []string{"event"}),
		ListenerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplydash_events_listener_failures_total",
			Help: "Total number of listener invocations that returned an error or panicked",
		}, []string{"event"}),
		PublishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supplydash_events_publish_duration_seconds",
			Help:    "Time from publish to settlement of the audit append and all listeners",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
	}
}

func (m *Metrics) IncPublished(name Name) {
	if m != nil {
		m.Published.WithLabelValues(string(name)).Inc()
	}
}

func (m *Metrics) IncAudited(name Name) {
	if m != nil {
		m.Audited.WithLabelValues(string(name)).Inc()
	}
}

func (m *Metrics) IncAuditFailures(name Name) {
	if m != nil {
		m.AuditFailures.WithLabelValues(string(name)).Inc()
	}
}

func (m *Metrics) IncListenerFailures(name Name) {
	if m != nil {
		m.ListenerFailures.WithLabelValues(string(name)).Inc()
	}
}

func (m *Metrics) ObservePublishDuration(name Name, seconds float64) {
	if m != nil {
		m.PublishDuration.WithLabelValues(string(name)).Observe(seconds)
	}
}
