// Package metrics exposes Prometheus counters for the responder daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the responder daemon's activity.
type Metrics struct {
	registry *prometheus.Registry

	// Resolutions counts recorded human decisions.
	// Labels: decision (allow|deny)
	Resolutions *prometheus.CounterVec

	// UnmatchedCallbacks counts callback taps that referenced a request
	// no longer in the store (late taps after timeout or sweep).
	UnmatchedCallbacks prometheus.Counter

	// SweptRequests counts records removed by the retention sweep.
	SweptRequests prometheus.Counter
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegate_resolutions_total",
			Help: "Human decisions recorded by the responder, by decision.",
		}, []string{"decision"}),
		UnmatchedCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegate_unmatched_callbacks_total",
			Help: "Callback taps whose request no longer existed in the store.",
		}),
		SweptRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegate_swept_requests_total",
			Help: "Request records removed by the retention sweep.",
		}),
	}
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
