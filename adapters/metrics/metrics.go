// Package metrics provides Prometheus metrics collection for subgate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for subgate.
type Collector struct {
	// Admission metrics
	AdmitTotal *prometheus.CounterVec

	// Usage metrics
	UsageRecorded *prometheus.CounterVec

	// Event ingestion metrics
	EventsTotal *prometheus.CounterVec

	// Rollover metrics
	RolloverPasses   prometheus.Counter
	RolloverOutcomes *prometheus.CounterVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AdmitTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "admit_total",
				Help:      "Admission decisions by component and outcome",
			},
			[]string{"component", "outcome"},
		),
		UsageRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "usage_recorded_total",
				Help:      "Usage units recorded by component",
			},
			[]string{"component"},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "events_total",
				Help:      "External events ingested, by type and result",
			},
			[]string{"type", "result"},
		),
		RolloverPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "rollover_passes_total",
				Help:      "Completed rollover passes",
			},
		),
		RolloverOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "rollover_outcomes_total",
				Help:      "Per-subscription rollover outcomes",
			},
			[]string{"outcome"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "notifications_total",
				Help:      "Notifications delivered, by kind",
			},
			[]string{"kind"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reload attempts",
			},
		),
	}
}

// ObserveRollover records the outcome counts of one pass.
func (c *Collector) ObserveRollover(rolledOver, cancelled, expired, failed int) {
	c.RolloverPasses.Inc()
	c.RolloverOutcomes.WithLabelValues("rolled_over").Add(float64(rolledOver))
	c.RolloverOutcomes.WithLabelValues("cancelled").Add(float64(cancelled))
	c.RolloverOutcomes.WithLabelValues("expired").Add(float64(expired))
	c.RolloverOutcomes.WithLabelValues("failed").Add(float64(failed))
}
