// Package metrics exposes Prometheus collectors for the notifier service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	RunsTotal               *prometheus.CounterVec
	ObservationsTotal       prometheus.Counter
	ChangesDetectedTotal    prometheus.Counter
	DeliveriesTotal         *prometheus.CounterVec
	ReconcileRetriesTotal   prometheus.Counter
	UnnotifiedAfterRunGauge prometheus.Gauge
}

// New registers all collectors against reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_runs_total",
				Help: "Total number of batch runs, labeled by result.",
			},
			[]string{"result"},
		),
		ObservationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notifier_observations_total",
				Help: "Total number of observations scraped from the source page.",
			},
		),
		ChangesDetectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notifier_changes_detected_total",
				Help: "Total number of status transitions recorded.",
			},
		),
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_deliveries_total",
				Help: "Total number of delivery attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		ReconcileRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notifier_reconciliation_retries_total",
				Help: "Total number of deliveries re-attempted for records left unnotified by prior runs.",
			},
		),
		UnnotifiedAfterRunGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifier_unnotified_records",
				Help: "Number of records still awaiting delivery after the last run.",
			},
		),
	}
}
