package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/middleware"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
)

const defaultHeartbeat = 30 * time.Second

// StreamHandler pushes Messenger changes to UI adapters over SSE.
type StreamHandler struct {
	messenger Messenger
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(m Messenger, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		messenger: m,
		heartbeat: defaultHeartbeat,
		logger:    log,
	}
}

// ConnectedEvent is the first event of every stream.
type ConnectedEvent struct {
	UserID   string `json:"userId"`
	Active   string `json:"active,omitempty"`
	Realtime bool   `json:"realtime"`
}

// HeartbeatEvent keeps idle streams open through proxies.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Events handles GET /api/v1/events
// Each change is sent as an SSE event named after its kind.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	changes, unsubscribe := h.messenger.Subscribe()
	defer unsubscribe()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(ctx)))

	sendSSEEvent(w, flusher, "connected", &ConnectedEvent{
		UserID:   h.messenger.Identity().UserID,
		Active:   h.messenger.Active(),
		Realtime: h.messenger.Connected(),
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case c, ok := <-changes:
			if !ok {
				// Messenger closed.
				sendSSEEvent(w, flusher, "closed", map[string]bool{"closed": true})
				return
			}
			if err := sendSSEEvent(w, flusher, string(c.Kind), c); err != nil {
				log.Warn("failed to write SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
