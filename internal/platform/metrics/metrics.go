package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the kit tracking pipeline.
type Metrics struct {
	PollCycles           prometheus.Counter
	StatusUpdates        *prometheus.CounterVec
	Dispatches           *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec
	DispatchFailures     *prometheus.CounterVec
	ResultConflicts      prometheus.Counter
	ResultsAccepted      prometheus.Counter
	OrdersPlaced         prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PollCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittrack_poll_cycles_total",
			Help: "Total number of carrier poll cycles executed",
		}),
		StatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kittrack_status_updates_total",
			Help: "Total tracking status writes, by shipment direction",
		}, []string{"direction"}),
		Dispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kittrack_dispatches_total",
			Help: "Downstream notifications dispatched, by event type",
		}, []string{"event_type"}),
		DuplicatesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kittrack_duplicates_suppressed_total",
			Help: "Dispatch attempts suppressed by the ledger, by event type",
		}, []string{"event_type"}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kittrack_dispatch_failures_total",
			Help: "Dispatched actions that returned an error, by event type",
		}, []string{"event_type"}),
		ResultConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittrack_result_conflicts_total",
			Help: "Lab results rejected because they contradict an accepted result",
		}),
		ResultsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittrack_results_accepted_total",
			Help: "Lab results accepted into kit history",
		}),
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittrack_orders_placed_total",
			Help: "Follow-on lab orders placed after return pickup",
		}),
	}
}
