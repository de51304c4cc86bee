package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvlink",
			Subsystem: "session",
			Name:      "ops_total",
			Help:      "Client session operations by outcome.",
		},
		[]string{"op", "outcome"},
	)
	sessionOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvlink",
			Subsystem: "session",
			Name:      "op_duration_seconds",
			Help:      "Client session round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
	nodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvlink",
			Subsystem: "node",
			Name:      "requests_total",
			Help:      "Requests served by the node by op and status.",
		},
		[]string{"node", "op", "status"},
	)
	nodeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kvlink",
			Subsystem: "node",
			Name:      "connections",
			Help:      "Open client connections on the node.",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionOps, sessionOpDuration, nodeRequests, nodeConnections, httpRequests, httpDuration)
	})
}

func RecordSessionOp(op, outcome string, duration time.Duration) {
	RegisterMetrics()
	sessionOps.WithLabelValues(op, outcome).Inc()
	sessionOpDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func RecordNodeRequest(node, op, status string) {
	RegisterMetrics()
	nodeRequests.WithLabelValues(node, op, status).Inc()
}

func NodeConnectionOpened(node string) {
	RegisterMetrics()
	nodeConnections.WithLabelValues(node).Inc()
}

func NodeConnectionClosed(node string) {
	RegisterMetrics()
	nodeConnections.WithLabelValues(node).Dec()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
