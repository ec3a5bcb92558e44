// Package metrics provides Prometheus metrics for the sync core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sync core. Components treat a
// nil *Metrics as "metrics disabled" and skip recording.
type Metrics struct {
	// Feed metrics
	PayloadsReceived   *prometheus.CounterVec // by content type
	DeltasMerged       prometheus.Counter
	GroupsRebuilt      prometheus.Counter
	EmissionsDelivered prometheus.Counter
	DecodeFailures     prometheus.Counter

	// Connection metrics
	ReconnectAttempts   prometheus.Counter
	SessionRefreshes    prometheus.Counter
	ActiveSubscriptions prometheus.Gauge

	// Archive metrics
	ArchiveBatchFlushes prometheus.Counter
	ArchiveRowsWritten  prometheus.Counter
}

// New creates and registers all metrics under the given namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sportsbook_sync"
	}

	return &Metrics{
		PayloadsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "payloads_received_total",
			Help:      "Subscription payloads received, by content type",
		}, []string{"type"}),
		DeltasMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "deltas_merged_total",
			Help:      "Entity deltas merged into the store",
		}),
		GroupsRebuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "groups_rebuilt_total",
			Help:      "Hierarchical rebuilds performed",
		}),
		EmissionsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "emissions_delivered_total",
			Help:      "Grouped collections emitted to consumers",
		}),
		DecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_failures_total",
			Help:      "Payloads dropped because their deltas failed to decode",
		}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Socket reconnect attempts by the owning layer",
		}),
		SessionRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "session_refreshes_total",
			Help:      "Session refresh operations performed",
		}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active_subscriptions",
			Help:      "Currently open topic subscriptions",
		}),
		ArchiveBatchFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "batch_flushes_total",
			Help:      "Delta batches flushed to the archive",
		}),
		ArchiveRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "rows_written_total",
			Help:      "Delta rows written to the archive",
		}),
	}
}
