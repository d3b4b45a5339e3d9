// internal/scheduler/metrics.go

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_loop_duration_seconds",
			Help:    "Wall-clock duration of one scheduling loop firing",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"loop"},
	)

	itemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_items_processed_total",
			Help: "Monitoring items successfully processed, by loop",
		},
		[]string{"loop"},
	)

	itemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_item_errors_total",
			Help: "Monitoring item checks that ended in error, by loop",
		},
		[]string{"loop"},
	)

	batchTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_batch_timeouts_total",
			Help: "Batch or page waits that hit their deadline, by loop",
		},
		[]string{"loop"},
	)

	pageCapTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_page_cap_trips_total",
			Help: "Times a tier loop hit its pagination safety cap",
		},
	)
)
