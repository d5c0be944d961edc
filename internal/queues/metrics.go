package queues

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks queue requests and capability downgrades.
type Metrics struct {
	downgrades *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

// NewMetrics registers the queue collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	downgrades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_capability_probe_downgrades_total",
		Help: "Capability probes that failed and fell back to order hints.",
	}, []string{"flow", "probe"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_queue_requests_total",
		Help: "Queue listings served by flow and queue.",
	}, []string{"flow", "queue"})
	if reg != nil {
		reg.MustRegister(downgrades, requests)
	}
	return &Metrics{downgrades: downgrades, requests: requests}
}

func (m *Metrics) downgrade(flow, probe string) {
	if m == nil {
		return
	}
	m.downgrades.WithLabelValues(flow, probe).Inc()
}

func (m *Metrics) request(flow string, queue Queue) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(flow, string(queue)).Inc()
}
