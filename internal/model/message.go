package model

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// DeleteScope selects who a deletion applies to.
type DeleteScope string

const (
	DeleteForMe       DeleteScope = "me"
	DeleteForEveryone DeleteScope = "everyone"
)

// Valid reports whether s is a known scope.
func (s DeleteScope) Valid() bool {
	return s == DeleteForMe || s == DeleteForEveryone
}

// UserRef is a reference to a user. The backend sends either a bare id or an
// embedded user summary; both decode into UserRef.
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts `"u1"` as well as `{"id":"u1","name":"..."}`.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*u = UserRef{ID: id}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*u = UserRef{}
		return nil
	}

	var raw struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Name    string `json:"name"`
		Avatar  string `json:"avatar"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	u.Name = raw.Name
	u.Avatar = raw.Avatar
	return nil
}

// Attachment describes a file sent with a message.
type Attachment struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Message represents a chat message, confirmed or provisional.
type Message struct {
	// Identity
	ID             string `json:"id,omitempty"`
	TempID         string `json:"tempId,omitempty"`
	ConversationID string `json:"conversationId"`

	// Content
	Sender     UserRef     `json:"sender"`
	ReceiverID string      `json:"receiverId,omitempty"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`

	// Deletion
	IsDeleted  bool     `json:"isDeleted,omitempty"`
	DeletedFor []string `json:"deletedFor,omitempty"`

	// Client-only flags, never sent over the wire.
	IsTemp bool `json:"-"`
	IsNew  bool `json:"-"`
}

// Key returns the confirmed id, or the temp id for provisional messages.
func (m *Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// HiddenFor reports whether userID deleted this message for themselves.
func (m *Message) HiddenFor(userID string) bool {
	return userID != "" && slices.Contains(m.DeletedFor, userID)
}

// Tombstone marks the message deleted for everyone.
func (m *Message) Tombstone() {
	m.IsDeleted = true
	m.Content = DeletedPlaceholder
	m.Attachment = nil
}

// Normalize applies the tombstone to a message the backend already reports
// as deleted for everyone.
func (m *Message) Normalize() {
	if m.IsDeleted {
		m.Tombstone()
	}
}

// Preview returns the denormalized conversation preview for this message.
func (m *Message) Preview() *LastMessage {
	if m.IsDeleted {
		return &LastMessage{ID: m.ID, Content: DeletedPlaceholder, CreatedAt: m.CreatedAt, Read: m.Read}
	}
	lm := &LastMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
	}
	if m.Attachment != nil {
		a := *m.Attachment
		lm.Attachment = &a
	}
	return lm
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	out := m
	if m.Attachment != nil {
		a := *m.Attachment
		out.Attachment = &a
	}
	if m.DeletedFor != nil {
		out.DeletedFor = append([]string(nil), m.DeletedFor...)
	}
	return out
}

// MessagePage is one page of messages as returned by the backend, newest first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	ReceiverID     string `json:"receiverId"`
	TempID         string `json:"tempId,omitempty"`
}
