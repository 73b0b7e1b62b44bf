package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Replayed    prometheus.Counter
	Conflicts   prometheus.Counter
	StoreErrors prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Replayed: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_idempotency_replayed_total",
			Help: "Responses replayed from the idempotency store",
		}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_idempotency_conflicts_total",
			Help: "Requests rejected because the key was in flight or reused with a different body",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "supplydash_idempotency_store_errors_total",
			Help: "Idempotency store failures that bypassed replay",
		}),
	}
}

func (m *Metrics) IncReplayed() {
	if m != nil {
		m.Replayed.Inc()
	}
}

func (m *Metrics) IncConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

func (m *Metrics) IncStoreError() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
