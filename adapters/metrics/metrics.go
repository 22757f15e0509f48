// Package metrics provides Prometheus metrics collection for the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the client.
type Collector struct {
	// Pull loop metrics
	PullsTotal        *prometheus.CounterVec
	PullDuration      prometheus.Histogram
	SyncState         prometheus.Gauge
	InstructionsTotal *prometheus.CounterVec

	// Page mutation metrics
	UpdatesApplied prometheus.Counter
	EvalsTotal     *prometheus.CounterVec

	// Event delivery metrics
	EventsSent       *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	PendingInputs    prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		PullsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "pulls_total",
				Help:      "Total number of pull requests by result",
			},
			[]string{"result"},
		),
		PullDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "monoclient",
				Name:      "pull_duration_seconds",
				Help:      "Time a pull request stayed open",
				Buckets:   []float64{.01, .1, .5, 1, 5, 15, 30, 60, 120},
			},
		),
		SyncState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "monoclient",
				Name:      "sync_state",
				Help:      "Current sync loop state (0 active, 1 retrying, 2 expired, 3 fatal)",
			},
		),
		InstructionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "instructions_total",
				Help:      "Total number of server instructions by kind",
			},
			[]string{"kind"},
		),
		UpdatesApplied: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "updates_applied_total",
				Help:      "Total number of updates applied to the document",
			},
		),
		EvalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "evals_total",
				Help:      "Total number of evaluated scripts by result",
			},
			[]string{"result"},
		),
		EventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "events_sent_total",
				Help:      "Total number of interaction events handed to delivery by kind",
			},
			[]string{"kind"},
		),
		DeliveryFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "event_delivery_failures_total",
				Help:      "Total number of event batches that failed to deliver",
			},
		),
		PendingInputs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "monoclient",
				Name:      "pending_inputs",
				Help:      "Number of delayed input events waiting for the next delivery",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "monoclient",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}
