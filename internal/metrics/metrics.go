package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service counters registered on one registry.
// Params: none.
// Returns: shared instrumentation handles for all engine packages.
type Metrics struct {
	Registry *prometheus.Registry

	AlertsProcessed     *prometheus.CounterVec
	TransitionsRecorded prometheus.Counter
	Escalations         prometheus.Counter
	NotificationBatches *prometheus.CounterVec
	SlaJobs             *prometheus.CounterVec
	HistoryPurgedRows   prometheus.Counter
}

// New creates a registry with all service collectors registered.
// Params: none.
// Returns: metrics bundle; the registry backs the metrics endpoint.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		AlertsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "alerts_processed_total",
			Help:      "Processed intake messages by outcome.",
		}, []string{"outcome"}),
		TransitionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "state_transitions_total",
			Help:      "Committed state transitions including aggregated ancestors.",
		}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "escalations_total",
			Help:      "Synthetic escalation transitions produced by the scanner.",
		}),
		NotificationBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "notification_batches_total",
			Help:      "Dispatched notification batches by channel and result.",
		}, []string{"channel", "result"}),
		SlaJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "sla_jobs_total",
			Help:      "Finished SLA computation jobs by final state.",
		}, []string{"state"}),
		HistoryPurgedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "providence",
			Name:      "history_purged_rows_total",
			Help:      "History rows removed by retention housekeeping.",
		}),
	}
}
