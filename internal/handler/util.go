package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeChatError maps a chatsync failure to a status and its user-facing text.
func writeChatError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, chatsync.UserMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatsync.ErrConversationNotFound),
		errors.Is(err, chatsync.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatsync.ErrNotMessageOwner):
		return http.StatusForbidden
	case errors.Is(err, chatsync.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chatsync.ErrEmptyMessage),
		errors.Is(err, chatsync.ErrUnsupportedAttachment),
		errors.Is(err, chatsync.ErrInvalidRecipient),
		errors.Is(err, chatsync.ErrNoActiveConversation):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
