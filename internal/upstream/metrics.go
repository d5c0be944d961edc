package upstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts upstream calls by model, method and outcome.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the upstream collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_upstream_calls_total",
		Help: "Upstream RPC calls by model, method and outcome.",
	}, []string{"model", "method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_upstream_call_duration_seconds",
		Help:    "Upstream RPC latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	if reg != nil {
		reg.MustRegister(calls, duration)
	}
	return &Metrics{calls: calls, duration: duration}
}

func (m *Metrics) observe(model, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsAccessDenied(err):
		outcome = "denied"
	default:
		outcome = "error"
	}
	m.calls.WithLabelValues(model, method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
