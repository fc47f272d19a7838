package chatsync

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// StoreOptions controls how unread counts are fetched.
type StoreOptions struct {
	// BatchUnread uses the single unread-counts request instead of one
	// request per conversation.
	BatchUnread bool
	// UnreadParallel bounds concurrent per-conversation requests.
	UnreadParallel int
}

// Snapshot is an opaque copy of the store used to roll back optimistic removals.
type Snapshot struct {
	conversations []model.Conversation
	active        string
}

// Active returns the conversation that was active when the snapshot was taken.
func (s Snapshot) Active() string {
	return s.active
}

// Store holds the signed-in user's conversations, most recently active first.
type Store struct {
	backend Backend
	opts    StoreOptions
	logger  *logger.Logger

	mu            sync.RWMutex
	conversations []model.Conversation
	active        string
}

// NewStore creates an empty store.
func NewStore(backend Backend, opts StoreOptions, log *logger.Logger) *Store {
	if opts.UnreadParallel <= 0 {
		opts.UnreadParallel = 4
	}
	return &Store{
		backend: backend,
		opts:    opts,
		logger:  log.Named("store"),
	}
}

// Load replaces the store's contents with the backend's conversation list
// and unread counts. On failure the previous state is kept.
func (s *Store) Load(ctx context.Context) error {
	convs, err := s.backend.ListConversations(ctx)
	if err != nil {
		return userError("load conversations", "Failed to load conversations", err)
	}

	ids := make([]string, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
	}

	counts, err := s.unreadCounts(ctx, ids)
	if err != nil {
		s.logger.Warn("unread counts unavailable", zap.Error(err))
	}
	for i := range convs {
		if n, ok := counts[convs[i].ID]; ok {
			convs[i].UnreadCount = n
		}
	}
	sortConversations(convs)

	s.mu.Lock()
	s.conversations = convs
	if i := s.index(s.active); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
	s.mu.Unlock()

	s.logger.Debug("conversations loaded", zap.Int("count", len(convs)))
	return nil
}

func (s *Store) unreadCounts(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if s.opts.BatchUnread {
		return s.backend.UnreadCounts(ctx, ids)
	}

	counts := make([]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.UnreadParallel)
	for i, id := range ids {
		g.Go(func() error {
			n, err := s.backend.UnreadCount(gctx, id)
			if err != nil {
				return fmt.Errorf("unread count for %s: %w", id, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = counts[i]
	}
	return out, nil
}

// ApplyIncomingMessage updates the matching conversation's preview and
// activity time and restores the ordering. When the conversation is unknown
// the store reloads from the backend and false is returned.
func (s *Store) ApplyIncomingMessage(ctx context.Context, msg model.Message) bool {
	s.mu.Lock()
	i := s.index(msg.ConversationID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Info("message for unknown conversation, reloading",
			zap.String("conversation_id", msg.ConversationID),
		)
		if err := s.Load(ctx); err != nil {
			s.logger.Warn("reload failed", zap.Error(err))
		}
		return false
	}

	conv := &s.conversations[i]
	if lm := conv.LastMessage; lm == nil || lm.ID == "" || lm.ID == msg.ID || !msg.CreatedAt.Before(lm.CreatedAt) {
		conv.LastMessage = msg.Preview()
	}
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	sortConversations(s.conversations)
	s.mu.Unlock()
	return true
}

// SetActive marks conversationID as open and clears its local unread count.
func (s *Store) SetActive(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(conversationID)
	if i < 0 {
		return ErrConversationNotFound
	}
	s.active = conversationID
	s.conversations[i].UnreadCount = 0
	return nil
}

// ClearActive closes the active conversation.
func (s *Store) ClearActive() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// Active returns the open conversation id, or "".
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// IncrementUnread bumps the unread counter of a conversation that is not open.
func (s *Store) IncrementUnread(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(conversationID)
	if i < 0 || conversationID == s.active {
		return false
	}
	s.conversations[i].UnreadCount++
	return true
}

// Remove drops a conversation and returns the snapshot to restore on failure.
func (s *Store) Remove(conversationID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(conversationID)
	if i < 0 {
		return Snapshot{}, ErrConversationNotFound
	}
	snap := s.snapshot()
	s.conversations = slices.Delete(s.conversations, i, i+1)
	if s.active == conversationID {
		s.active = ""
	}
	return snap, nil
}

// Restore puts the store back to snap.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = snap.conversations
	s.active = snap.active
}

func (s *Store) snapshot() Snapshot {
	convs := make([]model.Conversation, len(s.conversations))
	for i := range s.conversations {
		convs[i] = s.conversations[i].Clone()
	}
	return Snapshot{conversations: convs, active: s.active}
}

// ApplyTombstone replaces the preview with the deletion placeholder when it
// shows messageID. An empty conversationID matches any conversation.
func (s *Store) ApplyTombstone(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		conv := &s.conversations[i]
		if conversationID != "" && conv.ID != conversationID {
			continue
		}
		if conv.LastMessage != nil && conv.LastMessage.ID == messageID {
			conv.LastMessage.Content = model.DeletedPlaceholder
			conv.LastMessage.Attachment = nil
			return true
		}
	}
	return false
}

// PreviewShows reports whether the conversation preview currently shows messageID.
func (s *Store) PreviewShows(conversationID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(conversationID)
	if i < 0 {
		return false
	}
	lm := s.conversations[i].LastMessage
	return lm != nil && lm.ID == messageID
}

// SetLastMessage overwrites the preview; nil clears it.
func (s *Store) SetLastMessage(conversationID string, msg *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(conversationID)
	if i < 0 {
		return false
	}
	if msg == nil {
		s.conversations[i].LastMessage = nil
	} else {
		s.conversations[i].LastMessage = msg.Preview()
	}
	sortConversations(s.conversations)
	return true
}

// List returns a copy of all conversations in display order.
func (s *Store) List() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, len(s.conversations))
	for i := range s.conversations {
		out[i] = s.conversations[i].Clone()
	}
	return out
}

// Get returns a copy of one conversation.
func (s *Store) Get(conversationID string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(conversationID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i].Clone(), true
}

// First returns the most recently active conversation.
func (s *Store) First() (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.conversations) == 0 {
		return model.Conversation{}, false
	}
	return s.conversations[0].Clone(), true
}

// UnreadTotal sums unread counters across conversations.
func (s *Store) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for i := range s.conversations {
		total += s.conversations[i].UnreadCount
	}
	return total
}

func (s *Store) index(conversationID string) int {
	if conversationID == "" {
		return -1
	}
	return slices.IndexFunc(s.conversations, func(c model.Conversation) bool {
		return c.ID == conversationID
	})
}

// sortConversations orders by effective activity time, newest first.
// Equal times keep their current relative order.
func sortConversations(convs []model.Conversation) {
	slices.SortStableFunc(convs, func(a, b model.Conversation) int {
		return b.ActivityAt().Compare(a.ActivityAt())
	})
}
