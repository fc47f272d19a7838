// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks local API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total local API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total local API requests",
		},
		[]string{"method", "path", "status"},
	)

	// BackendRequestDuration tracks calls to the marketplace backend.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Backend REST call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "status"},
	)

	// MessagesSent counts outbound messages by kind and outcome.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Outbound messages by kind (text, attachment) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// MessagesReceived counts inbound realtime messages by routing result.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_received_total",
			Help: "Inbound realtime messages by routing result",
		},
		[]string{"result"},
	)

	// Deletions counts delete operations by scope and outcome.
	Deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deletions_total",
			Help: "Message and conversation deletions by scope and outcome",
		},
		[]string{"scope", "outcome"},
	)

	// AttachmentBytes counts uploaded attachment bytes.
	AttachmentBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_attachment_upload_bytes_total",
			Help: "Attachment bytes uploaded to the backend",
		},
	)

	// RealtimeConnected is 1 while the realtime channel is up.
	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected",
			Help: "Whether the realtime channel is connected",
		},
	)

	// RealtimeReconnects counts reconnect attempts by outcome.
	RealtimeReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Realtime reconnect attempts",
		},
		[]string{"outcome"},
	)

	// RealtimeEvents counts realtime events by direction and name.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Realtime events by direction and event name",
		},
		[]string{"direction", "event"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for a local API request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackendCall records metrics for one backend REST call.
func RecordBackendCall(op string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendRequestDuration.WithLabelValues(op, status).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
