package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the reconciliation engine and its channels.
var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbridge_events_total",
			Help: "Marketplace events handled by the reconciler, by outcome",
		},
		[]string{"outcome"},
	)

	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbridge_orders_created_total",
			Help: "Orders created from marketplace events",
		},
	)

	StatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbridge_status_updates_total",
			Help: "Local order status writes, by source",
		},
		[]string{"source"},
	)

	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbridge_poll_cycles_total",
			Help: "Polling cycles, by result",
		},
		[]string{"result"},
	)

	PollCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderbridge_poll_cycle_duration_seconds",
			Help:    "Duration of a full polling cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbridge_webhooks_total",
			Help: "Push callbacks received, by result",
		},
		[]string{"result"},
	)

	RemoteRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbridge_remote_retries_total",
			Help: "Retried marketplace API calls, by operation",
		},
		[]string{"operation"},
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EventsTotal,
			OrdersCreatedTotal,
			StatusUpdatesTotal,
			PollCyclesTotal,
			PollCycleDuration,
			WebhooksTotal,
			RemoteRetriesTotal,
		)
	})
}
