package chatsync

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// TimelineOptions tunes pagination and duplicate detection.
type TimelineOptions struct {
	PageSize int
	// DedupWindow is how far apart in time a provisional entry and an
	// incoming message with identical content and sender may be and still
	// count as the same message. This is a heuristic for echo races where
	// the backend does not return the temp id.
	DedupWindow time.Duration
}

// Timeline holds the open conversation's messages, oldest first.
type Timeline struct {
	backend Backend
	opts    TimelineOptions
	logger  *logger.Logger

	mu             sync.RWMutex
	conversationID string
	messages       []model.Message
	page           int
	hasMore        bool
	// loadSeq identifies the newest page-1 load; older ones are discarded.
	loadSeq uint64
}

// NewTimeline creates an empty timeline.
func NewTimeline(backend Backend, opts TimelineOptions, log *logger.Logger) *Timeline {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 60 * time.Second
	}
	return &Timeline{
		backend: backend,
		opts:    opts,
		logger:  log.Named("timeline"),
	}
}

// LoadPage fetches one page of conversationID. Page 1 replaces the timeline
// unless another page-1 load or a Reset started after it; later pages are
// prepended, skipping entries already present. A later page for a
// conversation that is no longer open is discarded.
func (t *Timeline) LoadPage(ctx context.Context, conversationID string, page int) error {
	if page < 1 {
		page = 1
	}

	var seq uint64
	if page == 1 {
		t.mu.Lock()
		t.loadSeq++
		seq = t.loadSeq
		t.mu.Unlock()
	}

	res, err := t.backend.ListMessages(ctx, conversationID, page, t.opts.PageSize)
	if err != nil {
		return userError("load messages", "Failed to load messages", err)
	}

	fetched := make([]model.Message, 0, len(res.Messages))
	for i := len(res.Messages) - 1; i >= 0; i-- {
		m := res.Messages[i]
		m.IsTemp = false
		m.IsNew = false
		m.Normalize()
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		fetched = append(fetched, m)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if page == 1 {
		if seq != t.loadSeq {
			t.logger.Debug("discarding superseded first page",
				zap.String("conversation_id", conversationID),
			)
			return nil
		}
		var pending []model.Message
		if t.conversationID == conversationID {
			for _, m := range t.messages {
				if m.IsTemp {
					pending = append(pending, m)
				}
			}
		}
		t.conversationID = conversationID
		t.messages = dedupe(fetched)
		for _, m := range pending {
			if !t.isDuplicate(m) {
				t.insert(m)
			}
		}
	} else {
		if t.conversationID != conversationID {
			t.logger.Debug("discarding page for closed conversation",
				zap.String("conversation_id", conversationID),
				zap.Int("page", page),
			)
			return nil
		}
		older := make([]model.Message, 0, len(fetched))
		for _, m := range fetched {
			if !t.isDuplicate(m) {
				older = append(older, m)
			}
		}
		t.messages = append(older, t.messages...)
		sortMessages(t.messages)
	}

	t.page = page
	t.hasMore = res.HasMore
	return nil
}

// Append adds msg at its chronological position, normally the end. It
// returns false when msg belongs to another conversation or duplicates an
// existing entry.
func (t *Timeline) Append(msg model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conversationID == "" || msg.ConversationID != t.conversationID {
		return false
	}
	if t.isDuplicate(msg) {
		return false
	}
	c := msg.Clone()
	c.Normalize()
	t.insert(c)
	return true
}

// ReplaceProvisional swaps the provisional entry tempID for its confirmed
// counterpart in place. The confirmed entry keeps tempID so that later
// echoes are recognised.
func (t *Timeline) ReplaceProvisional(tempID string, confirmed model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := slices.IndexFunc(t.messages, func(m model.Message) bool {
		return m.IsTemp && m.TempID == tempID
	})
	if i < 0 {
		return false
	}

	c := confirmed.Clone()
	c.TempID = tempID
	c.IsTemp = false
	c.Normalize()
	if c.ConversationID == "" {
		c.ConversationID = t.messages[i].ConversationID
	}
	t.messages[i] = c

	if c.ID != "" {
		t.messages = slices.DeleteFunc(t.messages, func(m model.Message) bool {
			return m.ID == c.ID && m.TempID != tempID
		})
	}
	if !slices.IsSortedFunc(t.messages, compareCreatedAt) {
		sortMessages(t.messages)
	}
	return true
}

// RemoveProvisional drops the provisional entry tempID.
func (t *Timeline) RemoveProvisional(tempID string) bool {
	return t.removeWhere(func(m model.Message) bool {
		return m.IsTemp && m.TempID == tempID
	})
}

// Remove drops the confirmed message messageID.
func (t *Timeline) Remove(messageID string) bool {
	if messageID == "" {
		return false
	}
	return t.removeWhere(func(m model.Message) bool {
		return m.ID == messageID
	})
}

func (t *Timeline) removeWhere(match func(model.Message) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.messages)
	t.messages = slices.DeleteFunc(t.messages, match)
	return len(t.messages) != n
}

// ApplyTombstone marks messageID deleted for everyone, in place.
func (t *Timeline) ApplyTombstone(messageID string) bool {
	return t.update(messageID, (*model.Message).Tombstone)
}

// MarkRead flags messageID as read.
func (t *Timeline) MarkRead(messageID string) bool {
	return t.update(messageID, func(m *model.Message) { m.Read = true })
}

func (t *Timeline) update(messageID string, fn func(*model.Message)) bool {
	if messageID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].ID == messageID {
			fn(&t.messages[i])
			return true
		}
	}
	return false
}

// Get returns a copy of the confirmed message messageID.
func (t *Timeline) Get(messageID string) (model.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.messages {
		if messageID != "" && m.ID == messageID {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

// FilterForViewer yields the messages visible to viewerID, oldest first.
// Each iteration reads the current state, so the sequence can be ranged
// over any number of times.
func (t *Timeline) FilterForViewer(viewerID string) iter.Seq[model.Message] {
	return func(yield func(model.Message) bool) {
		t.mu.RLock()
		msgs := make([]model.Message, 0, len(t.messages))
		for _, m := range t.messages {
			if !m.HiddenFor(viewerID) {
				msgs = append(msgs, m.Clone())
			}
		}
		t.mu.RUnlock()

		for _, m := range msgs {
			if !yield(m) {
				return
			}
		}
	}
}

// LastVisible returns the newest message visible to viewerID.
func (t *Timeline) LastVisible(viewerID string) (model.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if !t.messages[i].HiddenFor(viewerID) {
			return t.messages[i].Clone(), true
		}
	}
	return model.Message{}, false
}

// ConversationID returns the conversation the timeline shows.
func (t *Timeline) ConversationID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conversationID
}

// Page returns the last loaded page number.
func (t *Timeline) Page() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.page
}

// HasMore reports whether older pages remain.
func (t *Timeline) HasMore() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hasMore
}

// Len returns the number of entries, hidden ones included.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset empties the timeline.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = ""
	t.messages = nil
	t.page = 0
	t.hasMore = false
	t.loadSeq++
}

// isDuplicate applies the reconciliation rules against existing entries.
func (t *Timeline) isDuplicate(msg model.Message) bool {
	for _, e := range t.messages {
		if msg.ID != "" && e.ID == msg.ID {
			return true
		}
		if e.TempID != "" && (e.TempID == msg.ID || e.TempID == msg.TempID) {
			return true
		}
		if e.IsTemp && e.Content == msg.Content && sameSender(e, msg) &&
			absDuration(e.CreatedAt.Sub(msg.CreatedAt)) <= t.opts.DedupWindow {
			return true
		}
	}
	return false
}

// insert places msg after every entry not newer than it.
func (t *Timeline) insert(msg model.Message) {
	i := len(t.messages)
	for i > 0 && t.messages[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	t.messages = slices.Insert(t.messages, i, msg)
}

func sameSender(a, b model.Message) bool {
	return a.Sender.ID == "" || b.Sender.ID == "" || a.Sender.ID == b.Sender.ID
}

func dedupe(msgs []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != "" {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}

func compareCreatedAt(a, b model.Message) int {
	return a.CreatedAt.Compare(b.CreatedAt)
}

func sortMessages(msgs []model.Message) {
	slices.SortStableFunc(msgs, compareCreatedAt)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
