package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/middleware"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the attachment itself.
const multipartOverhead = 1 << 20

// MessageHandler handles timeline endpoints of the open conversation.
type MessageHandler struct {
	messenger Messenger
	maxUpload int64
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(m Messenger, maxUpload int64, log *logger.Logger) *MessageHandler {
	if maxUpload <= 0 {
		maxUpload = chatsync.DefaultMaxAttachmentBytes
	}
	return &MessageHandler{
		messenger: m,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// TimelineResponse is the rendered open conversation.
type TimelineResponse struct {
	ConversationID string           `json:"conversationId"`
	Entries        []chatsync.Entry `json:"entries"`
	HasMore        bool             `json:"hasMore"`
}

// SendRequest is the body of POST /conversations/:id/messages.
type SendRequest struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// SendResponse reports an accepted or confirmed send.
type SendResponse struct {
	TempID  string         `json:"tempId"`
	Message *model.Message `json:"message,omitempty"`
}

// List handles GET /api/v1/conversations/:id/messages
// Supports ?tz=<IANA zone> for day dividers.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.requireOpen(w, r)
	if !ok {
		return
	}
	loc, err := middleware.ValidateTimezone(r.URL.Query().Get("tz"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeTimeline(w, conversationID, loc)
}

// Older handles POST /api/v1/conversations/:id/messages/older
func (h *MessageHandler) Older(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.requireOpen(w, r)
	if !ok {
		return
	}
	loc, err := middleware.ValidateTimezone(r.URL.Query().Get("tz"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messenger.LoadOlder(r.Context()); err != nil {
		writeChatError(w, h.logger, "load older messages", err)
		return
	}
	h.writeTimeline(w, conversationID, loc)
}

// Send handles POST /api/v1/conversations/:id/messages
// With ?wait=true the response is held until the backend confirms.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pending, err := h.messenger.Send(r.Context(), chatsync.Draft{
		ConversationID: conversationID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
	})
	if err != nil {
		writeChatError(w, h.logger, "send message", err)
		return
	}
	h.respondSend(w, r, pending)
}

// Attach handles POST /api/v1/conversations/:id/attachments
// Multipart form: file, optional content and previewHandle.
func (h *MessageHandler) Attach(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content := r.FormValue("content")
	if err := middleware.ValidateMessageContent(content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			mimeType = byExt
		}
	}

	// The upload outlives this request, so the body is copied out of the
	// multipart temp storage first.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	pending, err := h.messenger.Send(r.Context(), chatsync.Draft{
		ConversationID: conversationID,
		Content:        content,
		Attachment: &chatsync.DraftAttachment{
			Filename:      header.Filename,
			MIMEType:      mimeType,
			Size:          header.Size,
			Body:          bytes.NewReader(data),
			PreviewHandle: r.FormValue("previewHandle"),
		},
	})
	if err != nil {
		writeChatError(w, h.logger, "send attachment", err)
		return
	}
	h.respondSend(w, r, pending)
}

// Delete handles DELETE /api/v1/messages/:id?deleteFor=me|everyone
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scope, err := middleware.ValidateDeleteScope(r.URL.Query().Get("deleteFor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messenger.DeleteMessage(r.Context(), messageID, scope); err != nil {
		writeChatError(w, h.logger, "delete message", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) requireOpen(w http.ResponseWriter, r *http.Request) (string, bool) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if h.messenger.Active() != conversationID {
		writeError(w, http.StatusConflict, "conversation is not open")
		return "", false
	}
	return conversationID, true
}

func (h *MessageHandler) writeTimeline(w http.ResponseWriter, conversationID string, loc *time.Location) {
	entries := h.messenger.Render(loc)
	if entries == nil {
		entries = []chatsync.Entry{}
	}
	writeJSON(w, http.StatusOK, &TimelineResponse{
		ConversationID: conversationID,
		Entries:        entries,
		HasMore:        h.messenger.HasMore(),
	})
}

func (h *MessageHandler) respondSend(w http.ResponseWriter, r *http.Request, pending *chatsync.PendingSend) {
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, &SendResponse{TempID: pending.TempID})
		return
	}

	msg, err := pending.Wait(r.Context())
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			h.logger.Debug("client stopped waiting for send", zap.String("temp_id", pending.TempID))
			return
		}
		writeChatError(w, h.logger, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, &SendResponse{TempID: pending.TempID, Message: &msg})
}
