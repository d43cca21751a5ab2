// Package metrics exposes prometheus counters and histograms for the Gate,
// the Maker's reconciliation step, and tracker window sizes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GateRequestDuration observes how long each Gate-serialized exchange
	// call took, labeled by operation.
	GateRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketmaker",
		Subsystem: "gate",
		Name:      "request_duration_seconds",
		Help:      "Duration of exchange requests serialized through the Gate.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// GateRequestErrors counts failed Gate-serialized requests by operation.
	GateRequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "gate",
		Name:      "request_errors_total",
		Help:      "Count of failed exchange requests by operation.",
	}, []string{"op"})

	// ReconcileCancels counts orders cancelled during Maker reconciliation.
	ReconcileCancels = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "maker",
		Name:      "reconcile_cancels_total",
		Help:      "Count of orders cancelled during reconciliation, by side.",
	}, []string{"side"})

	// ReconcilePlaces counts orders placed during Maker reconciliation.
	ReconcilePlaces = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "maker",
		Name:      "reconcile_places_total",
		Help:      "Count of orders placed during reconciliation, by side.",
	}, []string{"side"})

	// TrackerWindowSize reports the number of retained entries in a
	// tracker's in-memory window (trades, executions), by tracker name.
	TrackerWindowSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketmaker",
		Name:      "tracker_window_size",
		Help:      "Number of entries currently retained by a tracker.",
	}, []string{"tracker"})
)

// Registry returns a fresh registry with all collectors registered. Callers
// own wiring it to an HTTP handler (see internal/api).
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(GateRequestDuration, GateRequestErrors, ReconcileCancels, ReconcilePlaces, TrackerWindowSize)
	return reg
}
