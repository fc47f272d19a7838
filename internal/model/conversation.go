// Package model defines data structures for the messaging core.
package model

import (
	"time"
)

// Conversation represents a 1:1 chat between two users.
type Conversation struct {
	ID           string       `json:"id"`
	Participants []UserRef    `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`

	// UnreadCount is tracked client-side and seeded from the unread-count endpoint.
	UnreadCount int `json:"unreadCount"`
}

// LastMessage is the denormalized preview of the newest message in a conversation.
type LastMessage struct {
	ID         string      `json:"id,omitempty"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"createdAt"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Read       bool        `json:"read"`
}

// ActivityAt returns the effective sort timestamp: the later of UpdatedAt and
// the last message's CreatedAt.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Peer returns the participant that is not selfID.
func (c *Conversation) Peer(selfID string) UserRef {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p
		}
	}
	return UserRef{}
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of a store.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Participants != nil {
		out.Participants = append([]UserRef(nil), c.Participants...)
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		if lm.Attachment != nil {
			a := *lm.Attachment
			lm.Attachment = &a
		}
		out.LastMessage = &lm
	}
	return out
}

// UnreadCountsResponse is the batched unread-count payload.
type UnreadCountsResponse struct {
	Counts map[string]int `json:"counts"`
}
