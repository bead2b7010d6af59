// Package metrics defines the Prometheus instrumentation surface,
// grounded on the teacher's src/metrics/prometheus.go (promauto-registered
// vectors keyed by operation/status), generalized from banking-demo
// counters to the transaction-engine's own operation vocabulary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts every ProcessTransaction outcome by
	// operation type and terminal status (success, failed, persist_error).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of processed transactions by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration tracks end-to-end ProcessTransaction latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ProcessTransaction calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// LockWaitDuration tracks time spent blocked acquiring the
	// per-account LockManager semaphores.
	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_seconds",
			Help:    "Time spent waiting to acquire account locks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	// EventBusDepth samples the current event queue length.
	EventBusDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_event_bus_depth",
			Help: "Current number of queued, undelivered events",
		},
	)

	// EventsDroppedTotal mirrors events.Bus.DroppedCount as a gauge so it
	// survives scrape-interval gaps without needing a counter reset.
	EventsDroppedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_events_dropped_total",
			Help: "Total number of events dropped because the bus queue was full",
		},
	)

	// AccountBalanceHistogram samples post-mutation account balances, the
	// same shape as the teacher's AccountBalancesHistogram.
	AccountBalanceHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_account_balance_minor_units",
			Help:    "Distribution of account balances in integer minor units",
			Buckets: []float64{0, 1000, 10000, 100000, 1000000, 10000000, 100000000},
		},
	)
)

// RecordOperation increments OperationsTotal for a single outcome.
func RecordOperation(operation, status string) {
	OperationsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveDuration records seconds spent processing operation.
func ObserveDuration(operation string, seconds float64) {
	OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveLockWait records seconds spent blocked in LockManager.WithLock.
func ObserveLockWait(seconds float64) {
	LockWaitDuration.Observe(seconds)
}

// SetEventBusDepth publishes the current queue depth, typically sampled by
// a periodic reporter alongside events.Bus.DroppedCount.
func SetEventBusDepth(depth int) {
	EventBusDepth.Set(float64(depth))
}

// SetEventsDropped publishes the latest events.Bus.DroppedCount() reading.
func SetEventsDropped(total uint64) {
	EventsDroppedTotal.Set(float64(total))
}

// ObserveAccountBalance records a post-mutation account balance.
func ObserveAccountBalance(balance int64) {
	AccountBalanceHistogram.Observe(float64(balance))
}
