package chatsync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
)

// ErrNotMessageOwner is returned when deleting someone else's message for everyone.
var ErrNotMessageOwner = errors.New("only the sender can delete a message for everyone")

// Deleter applies the two message deletion scopes and conversation deletion.
type Deleter struct {
	backend  Backend
	store    *Store
	timeline *Timeline
	realtime Realtime
	selfID   string
	notify   func(Change)
	logger   *logger.Logger

	// open activates a conversation after the active one was deleted.
	open func(ctx context.Context, conversationID string) error
}

// NewDeleter wires the coordinator. open is called to activate the next
// conversation once a deleted conversation was the active one.
func NewDeleter(backend Backend, store *Store, timeline *Timeline, rt Realtime, selfID string, notify func(Change), open func(context.Context, string) error, log *logger.Logger) *Deleter {
	if notify == nil {
		notify = func(Change) {}
	}
	return &Deleter{
		backend:  backend,
		store:    store,
		timeline: timeline,
		realtime: rt,
		selfID:   selfID,
		notify:   notify,
		open:     open,
		logger:   log.Named("deletion"),
	}
}

// DeleteForMe removes messageID from the local timeline and persists the
// hide. Nothing is broadcast. On failure the timeline is reloaded.
func (d *Deleter) DeleteForMe(ctx context.Context, messageID string) error {
	msg, ok := d.timeline.Get(messageID)
	if !ok {
		return userError("delete message", "Message not found", ErrMessageNotFound)
	}

	d.timeline.Remove(messageID)
	d.refreshPreview(msg.ConversationID, messageID)
	d.notifyBoth(msg.ConversationID)

	if err := d.backend.DeleteMessage(ctx, messageID, model.DeleteForMe); err != nil {
		metrics.Deletions.WithLabelValues(string(model.DeleteForMe), "failed").Inc()
		d.resync(ctx, msg.ConversationID)
		return d.failed("delete message", "Failed to delete message", msg.ConversationID, err)
	}

	metrics.Deletions.WithLabelValues(string(model.DeleteForMe), "ok").Inc()
	return nil
}

// DeleteForEveryone tombstones messageID locally, persists it and then
// broadcasts exactly one delete_message. On failure the timeline is reloaded
// and nothing is broadcast.
func (d *Deleter) DeleteForEveryone(ctx context.Context, messageID string) error {
	msg, ok := d.timeline.Get(messageID)
	if !ok {
		return userError("delete message", "Message not found", ErrMessageNotFound)
	}
	if msg.Sender.ID != d.selfID {
		return userError("delete message", "You can only delete your own messages for everyone", ErrNotMessageOwner)
	}

	d.timeline.ApplyTombstone(messageID)
	d.store.ApplyTombstone(msg.ConversationID, messageID)
	d.notifyBoth(msg.ConversationID)

	if err := d.backend.DeleteMessage(ctx, messageID, model.DeleteForEveryone); err != nil {
		metrics.Deletions.WithLabelValues(string(model.DeleteForEveryone), "failed").Inc()
		d.resync(ctx, msg.ConversationID)
		return d.failed("delete message", "Failed to delete message", msg.ConversationID, err)
	}
	metrics.Deletions.WithLabelValues(string(model.DeleteForEveryone), "ok").Inc()

	err := d.realtime.DeleteMessage(ctx, model.MessageDeleted{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		DeleteFor:      model.DeleteForEveryone,
	})
	if err != nil {
		d.logger.Warn("deletion broadcast failed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
	return nil
}

// DeleteConversation removes conversationID optimistically. When it was the
// active conversation the next one in the list becomes active once the
// backend confirms. On failure the store is restored from its snapshot.
func (d *Deleter) DeleteConversation(ctx context.Context, conversationID string) error {
	snap, err := d.store.Remove(conversationID)
	if err != nil {
		return userError("delete conversation", "Conversation not found", err)
	}

	wasActive := snap.Active() == conversationID
	var next string
	if wasActive {
		d.timeline.Reset()
		if c, ok := d.store.First(); ok {
			next = c.ID
			if err := d.store.SetActive(next); err != nil {
				d.logger.Warn("activate next conversation", zap.String("conversation_id", next), zap.Error(err))
				next = ""
			}
		}
	}
	d.notifyBoth(conversationID)

	if err := d.backend.DeleteConversation(ctx, conversationID); err != nil {
		metrics.Deletions.WithLabelValues("conversation", "failed").Inc()
		d.store.Restore(snap)
		if wasActive && d.open != nil {
			if err := d.open(ctx, conversationID); err != nil {
				d.logger.Warn("reopen after failed delete", zap.Error(err))
			}
		}
		return d.failed("delete conversation", "Failed to delete conversation", conversationID, err)
	}
	metrics.Deletions.WithLabelValues("conversation", "ok").Inc()

	if next != "" && d.open != nil {
		if err := d.open(ctx, next); err != nil {
			d.logger.Warn("open next conversation", zap.String("conversation_id", next), zap.Error(err))
		}
	}
	return nil
}

// refreshPreview points the conversation preview at the newest message
// still visible when the removed message was the one shown.
func (d *Deleter) refreshPreview(conversationID, messageID string) {
	if !d.store.PreviewShows(conversationID, messageID) {
		return
	}
	if last, ok := d.timeline.LastVisible(d.selfID); ok {
		d.store.SetLastMessage(conversationID, &last)
	} else {
		d.store.SetLastMessage(conversationID, nil)
	}
}

func (d *Deleter) resync(ctx context.Context, conversationID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resyncTimeout)
	defer cancel()

	if d.timeline.ConversationID() == conversationID {
		if err := d.timeline.LoadPage(ctx, conversationID, 1); err != nil {
			d.logger.Warn("timeline resync failed", zap.Error(err))
		}
	}
	if err := d.store.Load(ctx); err != nil {
		d.logger.Warn("store resync failed", zap.Error(err))
	}
	d.notifyBoth(conversationID)
}

func (d *Deleter) failed(op, message, conversationID string, cause error) error {
	d.logger.Warn(op+" failed", zap.String("conversation_id", conversationID), zap.Error(cause))
	err := userError(op, message, cause)
	d.notify(Change{Kind: ChangeError, ConversationID: conversationID, Message: message})
	return err
}

func (d *Deleter) notifyBoth(conversationID string) {
	d.notify(Change{Kind: ChangeTimeline, ConversationID: conversationID})
	d.notify(Change{Kind: ChangeConversations, ConversationID: conversationID})
}
