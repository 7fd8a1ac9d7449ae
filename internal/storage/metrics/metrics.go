// Package metrics provides Prometheus metrics for the storage node daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	objectOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_node_object_ops_total",
			Help: "Object operations by kind and result",
		},
		[]string{"op", "status"},
	)

	objectOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_node_object_op_duration_seconds",
			Help:    "Object operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	objectBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_node_object_bytes_total",
			Help: "Object bytes written or opened for reading",
		},
		[]string{"direction"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_node_http_requests_total",
			Help: "HTTP requests served by the node",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_node_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	storedObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_node_stored_objects",
			Help: "Objects held on disk at the last stats scan",
		},
	)

	storedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_node_stored_bytes",
			Help: "Bytes held on disk at the last stats scan",
		},
	)
)

// RecordObjectOp records one object operation. A not-found read counts as "miss".
func RecordObjectOp(op, status string, duration time.Duration) {
	objectOps.WithLabelValues(op, status).Inc()
	objectOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordObjectBytes adds transferred bytes for direction "in" or "out".
func RecordObjectBytes(direction string, n int64) {
	if n > 0 {
		objectBytes.WithLabelValues(direction).Add(float64(n))
	}
}

// RecordHTTPRequest records a served request by route pattern.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetStored publishes the last stats scan.
func SetStored(objects, bytes int64) {
	storedObjects.Set(float64(objects))
	storedBytes.Set(float64(bytes))
}
