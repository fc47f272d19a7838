package chatsync

import (
	"sync"
)

// ChangeKind names what part of the state changed.
type ChangeKind string

const (
	ChangeConversations ChangeKind = "conversations"
	ChangeTimeline      ChangeKind = "timeline"
	ChangePresence      ChangeKind = "presence"
	ChangeConnection    ChangeKind = "connection"
	ChangeProgress      ChangeKind = "progress"
	ChangeError         ChangeKind = "error"
)

// Change is a notification for UI adapters. Consumers re-read state
// through the Messenger; only errors and progress carry a payload.
type Change struct {
	Kind           ChangeKind `json:"kind"`
	ConversationID string     `json:"conversationId,omitempty"`
	TempID         string     `json:"tempId,omitempty"`
	Progress       int        `json:"progress,omitempty"`
	Connected      *bool      `json:"connected,omitempty"`
	Message        string     `json:"message,omitempty"`
}

const subscriberBuffer = 64

// notifier fans changes out to subscribers without blocking publishers.
// A subscriber that falls behind loses changes, never the publisher.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Change)}
}

func (n *notifier) subscribe() (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Change, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if c, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(c)
			}
		})
	}
}

func (n *notifier) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
