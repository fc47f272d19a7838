package chatsync

import (
	"errors"
)

var (
	// ErrConversationNotFound is returned for ids unknown to the store.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound is returned for ids absent from the open timeline.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNoActiveConversation is returned when an operation needs an open conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrEmptyMessage is returned for drafts with neither text nor attachment.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrAttachmentTooLarge is returned when an attachment exceeds the size ceiling.
	ErrAttachmentTooLarge = errors.New("attachment too large")
	// ErrUnsupportedAttachment is returned for MIME types outside the allow-lists.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
	// ErrInvalidRecipient is returned when a draft names a receiver outside the conversation.
	ErrInvalidRecipient = errors.New("receiver is not the conversation peer")
)

// UserError is a failure surfaced to the user as a short, actionable message.
// The underlying cause is kept for logs and errors.Is.
type UserError struct {
	Op      string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(op, message string, err error) *UserError {
	return &UserError{Op: op, Message: message, Err: err}
}

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}
