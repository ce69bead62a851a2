// Package metrics defines the Prometheus instruments for the coordination
// layer. All collectors are registered via promauto at init time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation metrics
var (
	// OperationsTotal tracks guarded operations by name and outcome
	// (success, failed, timeout, refused, cancelled).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirman_operations_total",
			Help: "Coordinated operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// OperationDuration tracks agent call latency by operation
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kirman_operation_duration_seconds",
			Help:    "Agent operation duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// BatchItemsTotal tracks batch item outcomes (success, skipped, failed)
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirman_batch_items_total",
			Help: "Batch item outcomes by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ActiveCooldowns tracks the number of keys currently cooling down
	ActiveCooldowns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kirman_active_cooldowns",
			Help: "Number of keys with an active cooldown",
		},
	)
)

// Notification metrics
var (
	// ToastsShownTotal tracks toasts by severity
	ToastsShownTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirman_toasts_shown_total",
			Help: "Toast notifications shown by severity",
		},
		[]string{"severity"},
	)

	// ConfirmsResolvedTotal tracks confirm resolutions by answer
	ConfirmsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirman_confirms_resolved_total",
			Help: "Confirmation prompts resolved by answer (confirmed/cancelled)",
		},
		[]string{"answer"},
	)

	// PushClients tracks currently connected UI push sockets
	PushClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kirman_push_clients",
			Help: "Currently connected UI push WebSocket clients",
		},
	)

	// MonitorEventsTotal tracks monitor status events by status
	MonitorEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirman_monitor_events_total",
			Help: "Monitor status events received by status",
		},
		[]string{"status"},
	)
)
