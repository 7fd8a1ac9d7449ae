// Package metrics provides Prometheus metrics for the transfer gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chunk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Chunk transfer metrics
	chunkBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_transfer_bytes_total",
			Help: "Total chunk bytes moved through the gateway",
		},
		[]string{"direction"},
	)

	chunkTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_transfers_total",
			Help: "Total chunk transfers by direction and result",
		},
		[]string{"direction", "status"},
	)

	// Registration metrics
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_registrations_total",
			Help: "Manifest registrations by outcome",
		},
		[]string{"outcome"},
	)

	dedupChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunk_dedup_chunks_total",
			Help: "Chunks skipped at registration because they were already present",
		},
	)

	finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_finalizations_total",
			Help: "Finalization attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Token metrics
	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_tokens_issued_total",
			Help: "Transfer tokens handed out, new or reused",
		},
		[]string{"action", "mode"},
	)

	tokenRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_token_rejections_total",
			Help: "Transfer tokens rejected at validation",
		},
		[]string{"action", "reason"},
	)

	tokensSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunk_tokens_swept_total",
			Help: "Expired tokens removed by the in-memory sweeper",
		},
	)

	// Backend metrics
	backendOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chunk_backend_op_duration_seconds",
			Help:    "Object backend operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node", "op"},
	)

	backendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_backend_errors_total",
			Help: "Object backend operation failures",
		},
		[]string{"node", "op"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chunk_backend_circuit_open",
			Help: "1 when the node circuit breaker is not closed",
		},
		[]string{"node"},
	)

	nodeDeleteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_node_delete_failures_total",
			Help: "Per-node batch delete failures",
		},
		[]string{"node"},
	)
)

// RecordHTTPRequest records one HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordChunkUpload records an upload attempt.
func RecordChunkUpload(bytes int64, success bool) {
	recordTransfer("upload", bytes, success)
}

// RecordChunkDownload records a download stream being opened.
func RecordChunkDownload(bytes int64, success bool) {
	recordTransfer("download", bytes, success)
}

func recordTransfer(direction string, bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	chunkTransfers.WithLabelValues(direction, status).Inc()
	if success && bytes > 0 {
		chunkBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}

// RecordRegistration records a registration outcome and the dedup hits.
func RecordRegistration(outcome string, existing int) {
	registrations.WithLabelValues(outcome).Inc()
	if existing > 0 {
		dedupChunks.Add(float64(existing))
	}
}

// RecordFinalization records a finalization outcome.
func RecordFinalization(outcome string) {
	finalizations.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued records a token handed to a client.
func RecordTokenIssued(action string, reused bool) {
	mode := "new"
	if reused {
		mode = "reused"
	}
	tokensIssued.WithLabelValues(action, mode).Inc()
}

// RecordTokenRejected records a failed validation.
func RecordTokenRejected(action, reason string) {
	tokenRejections.WithLabelValues(action, reason).Inc()
}

// RecordTokensSwept records expired tokens garbage collected in memory.
func RecordTokensSwept(n int) {
	if n > 0 {
		tokensSwept.Add(float64(n))
	}
}

// RecordBackendOp records one object backend call.
func RecordBackendOp(node, op string, duration time.Duration, err error) {
	backendOpDuration.WithLabelValues(node, op).Observe(duration.Seconds())
	if err != nil {
		backendErrors.WithLabelValues(node, op).Inc()
	}
}

// SetBreakerOpen publishes a node breaker state.
func SetBreakerOpen(node string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	breakerState.WithLabelValues(node).Set(v)
}

// RecordNodeDeleteFailure counts a failed per-node batch delete.
func RecordNodeDeleteFailure(node string) {
	nodeDeleteFailures.WithLabelValues(node).Inc()
}
