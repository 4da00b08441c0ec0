package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/envelopes/internal/domain"
)

// Metrics holds all Prometheus metrics and implements usecase.Recorder.
type Metrics struct {
	backend string

	// Ledger metrics
	Reconciliations *prometheus.CounterVec
	LinesRemoved    *prometheus.CounterVec
	Compensations   *prometheus.CounterVec
	LastSurplus     *prometheus.GaugeVec

	// Integrity metrics
	IntegrityFailures *prometheus.CounterVec

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics with the default registerer.
func New(backend string) *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, backend)
}

// NewWithRegistry creates and registers all Prometheus metrics with reg.
func NewWithRegistry(reg prometheus.Registerer, backend string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		backend: backend,

		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envelopes_reconciliations_total",
				Help: "Total number of reconciliations recorded",
			},
			[]string{"storage_key"},
		),
		LinesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envelopes_lines_removed_total",
				Help: "Total number of reconciliation lines removed",
			},
			[]string{"storage_key"},
		),
		Compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envelopes_compensations_total",
				Help: "Total number of synthesized compensation transactions by kind",
			},
			[]string{"kind"},
		),
		LastSurplus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "envelopes_calculated_surplus",
				Help: "Calculated surplus of the most recent reconciliation",
			},
			[]string{"storage_key"},
		),

		IntegrityFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envelopes_integrity_failures_total",
				Help: "Total number of integrity failures by reason",
			},
			[]string{"reason"},
		),

		StorageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envelopes_storage_operations_total",
				Help: "Total ledger book loads and saves by backend and outcome",
			},
			[]string{"backend", "operation", "outcome"},
		),
		StorageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "envelopes_storage_duration_seconds",
				Help:    "Duration of ledger book loads and saves",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
	}
}

// ReconciliationRecorded counts a reconciliation and its compensations.
func (m *Metrics) ReconciliationRecorded(key string, line domain.EntryLine) {
	m.Reconciliations.WithLabelValues(key).Inc()
	for _, e := range line.Entries() {
		for _, t := range e.Transactions() {
			if t.Kind.IsCompensation() {
				m.Compensations.WithLabelValues(string(t.Kind)).Inc()
			}
		}
	}
	surplus, _ := line.CalculatedSurplus().Float64()
	m.LastSurplus.WithLabelValues(key).Set(surplus)
}

// LineRemoved counts a removed reconciliation.
func (m *Metrics) LineRemoved(key string) {
	m.LinesRemoved.WithLabelValues(key).Inc()
}

// IntegrityFailure counts a tamper, corruption or validation failure.
func (m *Metrics) IntegrityFailure(reason string) {
	m.IntegrityFailures.WithLabelValues(reason).Inc()
}

// StorageOperation records the outcome and duration of a load or save.
func (m *Metrics) StorageOperation(op string, duration time.Duration, err error) {
	m.StorageOperations.WithLabelValues(m.backend, op, outcome(err)).Inc()
	m.StorageDuration.WithLabelValues(m.backend, op).Observe(duration.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrBookNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTamperedData), errors.Is(err, domain.ErrCorruptFormat):
		return "integrity_error"
	default:
		return "error"
	}
}
