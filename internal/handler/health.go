package handler

import (
	"net/http"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	messenger Messenger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(m Messenger) *HealthHandler {
	return &HealthHandler{
		messenger: m,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.messenger == nil || !h.messenger.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "realtime channel not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// PresenceResponse is the body of GET /presence.
type PresenceResponse struct {
	Connected bool     `json:"connected"`
	Online    []string `json:"online"`
}

// Presence handles GET /api/v1/presence
func (h *HealthHandler) Presence(w http.ResponseWriter, r *http.Request) {
	online := h.messenger.OnlineUsers()
	if online == nil {
		online = []string{}
	}
	writeJSON(w, http.StatusOK, &PresenceResponse{
		Connected: h.messenger.Connected(),
		Online:    online,
	})
}
