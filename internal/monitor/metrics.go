// Package monitor exposes prometheus metrics for the relational and document stores.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store labels
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Metrics collects store-level counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsOpened       prometheus.Counter
	sessionsActive       prometheus.Gauge
	sessionAcquireErrors prometheus.Counter
	operations           *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	schemaResets         prometheus.Counter
	shapeRegistrations   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg (skipped when reg is nil)
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessionsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_opened_total",
				Help:      "Total number of relational sessions opened",
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Relational sessions currently holding a pooled connection",
			},
		),
		sessionAcquireErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_acquire_errors_total",
				Help:      "Total number of failed session acquisitions",
			},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"store", "entity", "action", "status"}, // status: ok, error
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store", "entity", "action"},
		),
		schemaResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_resets_total",
				Help:      "Total number of relational schema drop-and-recreate runs",
			},
		),
		shapeRegistrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shape_registrations_total",
				Help:      "Document shape registrations by outcome",
			},
			[]string{"collection", "outcome"}, // created, unchanged, updated, conflict
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsOpened,
		m.sessionsActive,
		m.sessionAcquireErrors,
		m.operations,
		m.operationDuration,
		m.schemaResets,
		m.shapeRegistrations,
	}
}

// SessionOpened records a successful session acquisition
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
	m.sessionsActive.Inc()
}

// SessionReleased records a session returning its connection
func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// SessionAcquireFailed records a failed acquisition
func (m *Metrics) SessionAcquireFailed() {
	if m == nil {
		return
	}
	m.sessionAcquireErrors.Inc()
}

// ObserveOperation records one store operation and its latency
func (m *Metrics) ObserveOperation(store, entity, action string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(store, entity, action, status).Inc()
	m.operationDuration.WithLabelValues(store, entity, action).Observe(time.Since(start).Seconds())
}

// SchemaReset records a schema drop-and-recreate
func (m *Metrics) SchemaReset() {
	if m == nil {
		return
	}
	m.schemaResets.Inc()
}

// ShapeRegistered records the outcome of a document shape registration
func (m *Metrics) ShapeRegistered(collection, outcome string) {
	if m == nil {
		return
	}
	m.shapeRegistrations.WithLabelValues(collection, outcome).Inc()
}
