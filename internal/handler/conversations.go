package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/middleware"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// ConversationHandler handles conversation list endpoints.
type ConversationHandler struct {
	messenger Messenger
	logger    *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(m Messenger, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		messenger: m,
		logger:    log,
	}
}

// ConversationListResponse is the body of GET /conversations.
type ConversationListResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	Active        string               `json:"active,omitempty"`
	UnreadTotal   int                  `json:"unreadTotal"`
	MessagesPath  string               `json:"messagesPath"`
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs := h.messenger.Conversations()
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}

	writeJSON(w, http.StatusOK, &ConversationListResponse{
		Conversations: convs,
		Active:        h.messenger.Active(),
		UnreadTotal:   total,
		MessagesPath:  h.messenger.Identity().Role.MessagesPath(),
	})
}

// ConversationResponse is one conversation with its peer's profile link.
type ConversationResponse struct {
	model.Conversation
	PeerID      string `json:"peerId"`
	PeerOnline  bool   `json:"peerOnline"`
	ProfilePath string `json:"profilePath"`
}

// Open handles POST /api/v1/conversations/:id/open
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messenger.Open(r.Context(), conversationID); err != nil {
		writeChatError(w, h.logger, "open conversation", err)
		return
	}

	conv, ok := h.messenger.Conversation(conversationID)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, h.describe(conv))
}

// Delete handles DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messenger.DeleteConversation(r.Context(), conversationID); err != nil {
		writeChatError(w, h.logger, "delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) describe(conv model.Conversation) *ConversationResponse {
	self := h.messenger.Identity()
	peer := conv.Peer(self.UserID).ID
	online := false
	for _, id := range h.messenger.OnlineUsers() {
		if id == peer {
			online = true
			break
		}
	}
	return &ConversationResponse{
		Conversation: conv,
		PeerID:       peer,
		PeerOnline:   online,
		ProfilePath:  self.Role.ProfilePath(peer),
	}
}
