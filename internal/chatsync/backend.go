// Package chatsync keeps a user's conversations and the open conversation's
// timeline in sync with the marketplace backend and its realtime channel.
package chatsync

import (
	"context"
	"io"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/realtime"
)

// ProgressFunc receives upload progress in percent (0-100).
type ProgressFunc func(percent int)

// AttachmentUpload is the multipart payload of POST /messages/attachment.
type AttachmentUpload struct {
	ConversationID string
	ReceiverID     string
	Content        string
	TempID         string
	Filename       string
	MIMEType       string
	Size           int64
	Body           io.Reader
}

// Backend is the subset of the marketplace REST API used by the core.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	UnreadCount(ctx context.Context, conversationID string) (int, error)
	// UnreadCounts returns unread counts keyed by conversation id in one request.
	UnreadCounts(ctx context.Context, conversationIDs []string) (map[string]int, error)
	ListMessages(ctx context.Context, conversationID string, page, limit int) (*model.MessagePage, error)
	SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.Message, error)
	SendAttachment(ctx context.Context, upload *AttachmentUpload, progress ProgressFunc) (*model.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkConversationRead(ctx context.Context, conversationID string) error
	DeleteMessage(ctx context.Context, messageID string, scope model.DeleteScope) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Realtime is the duplex event channel as used by the core.
type Realtime interface {
	Connect(ctx context.Context, h realtime.Handler) error
	JoinConversation(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, msg model.Message) error
	DeleteMessage(ctx context.Context, evt model.MessageDeleted) error
	Online(userID string) bool
	OnlineUsers() []string
	Connected() bool
	Close() error
}
