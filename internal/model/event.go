package model

// Realtime event names. Client→server and server→client share one namespace.
const (
	EventUserConnected     = "user_connected"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventDeleteMessage     = "delete_message"

	EventOnlineUsers       = "online_users"
	EventUserStatusChanged = "user_status_changed"
	EventNewMessage        = "new_message"
	EventMessageDeleted    = "message_deleted"
)

// MessageDeleted is the payload of delete_message and message_deleted.
type MessageDeleted struct {
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId,omitempty"`
	DeleteFor      DeleteScope `json:"deleteFor"`
}

// UserStatus is the payload of user_status_changed.
type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Ack is the generic backend acknowledgement body.
type Ack struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}
