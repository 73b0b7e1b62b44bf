package guarded

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the guarded audit store.
type Metrics struct {
	Appended            prometheus.Counter
	Rejected            prometheus.Counter
	PersistFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_audit_store_appended_total",
			Help: "Total number of audit entries persisted through the guarded store",
		}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_audit_store_circuit_rejected_total",
			Help: "Total number of audit appends rejected because the circuit breaker was open",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_audit_store_persist_failures_total",
			Help: "Total number of audit appends that failed in the underlying store",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "supplydash_audit_store_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) IncAppended() {
	if m != nil {
		m.Appended.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
