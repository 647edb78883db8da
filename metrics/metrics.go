// Package metrics exposes Prometheus collectors for store operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors a store reports to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	affected   *prometheus.CounterVec
	documents  prometheus.Gauge
	saves      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_operations_total",
				Help: "Store operations by kind.",
			},
			[]string{"op"},
		),
		affected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_documents_affected_total",
				Help: "Documents inserted, updated, removed or returned, by operation.",
			},
			[]string{"op"},
		),
		documents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docstore_documents",
				Help: "Documents currently held in the collection.",
			},
		),
		saves: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docstore_save_duration_seconds",
				Help:    "Snapshot save duration by result.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.affected, m.documents, m.saves} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Operation records one call of op that touched n documents.
func (m *Metrics) Operation(op string, n int) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
	if n > 0 {
		m.affected.WithLabelValues(op).Add(float64(n))
	}
}

// Documents sets the collection size.
func (m *Metrics) Documents(n int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(n))
}

// Save records a snapshot save.
func (m *Metrics) Save(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Observe(d.Seconds())
}
