package chatsync

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/session"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
)

const readAckTimeout = 10 * time.Second

// Options configures a Messenger.
type Options struct {
	PageSize            int
	DedupWindow         time.Duration
	SendTimeout         time.Duration
	MaxAttachmentBytes  int64
	BatchUnreadCounts   bool
	UnreadFetchParallel int
}

// Messenger composes the conversation store, timeline, send pipeline,
// deletion coordinator and realtime bridge for one signed-in user. It is
// the same for every role.
type Messenger struct {
	identity session.Identity
	backend  Backend
	realtime Realtime
	store    *Store
	timeline *Timeline
	sender   *Sender
	deleter  *Deleter
	notifier *notifier
	logger   *logger.Logger

	acks sync.WaitGroup
}

// NewMessenger wires the components for identity.
func NewMessenger(identity session.Identity, backend Backend, rt Realtime, opts Options, log *logger.Logger) *Messenger {
	log = log.Named("messenger").WithSession(identity.UserID, string(identity.Role))

	m := &Messenger{
		identity: identity,
		backend:  backend,
		realtime: rt,
		notifier: newNotifier(),
		logger:   log,
	}
	m.store = NewStore(backend, StoreOptions{
		BatchUnread:    opts.BatchUnreadCounts,
		UnreadParallel: opts.UnreadFetchParallel,
	}, log)
	m.timeline = NewTimeline(backend, TimelineOptions{
		PageSize:    opts.PageSize,
		DedupWindow: opts.DedupWindow,
	}, log)

	self := model.UserRef{ID: identity.UserID, Name: identity.Name}
	m.sender = NewSender(backend, m.store, m.timeline, rt, self, SenderOptions{
		MaxAttachmentBytes: opts.MaxAttachmentBytes,
		SendTimeout:        opts.SendTimeout,
	}, m.notifier.publish, log)
	m.deleter = NewDeleter(backend, m.store, m.timeline, rt, identity.UserID, m.notifier.publish, m.Open, log)
	return m
}

// Identity returns the signed-in user.
func (m *Messenger) Identity() session.Identity {
	return m.identity
}

// Start loads the conversation list and connects the realtime channel.
func (m *Messenger) Start(ctx context.Context) error {
	if err := m.store.Load(ctx); err != nil {
		return err
	}
	m.notifier.publish(Change{Kind: ChangeConversations})

	if err := m.realtime.Connect(ctx, m); err != nil {
		return fmt.Errorf("failed to connect realtime channel: %w", err)
	}
	m.logger.Info("messenger started", zap.Int("conversations", len(m.store.List())))
	return nil
}

// Open makes conversationID the active conversation: joins its room, loads
// the newest page and marks it read on the backend. When the page cannot be
// loaded no conversation is left open.
func (m *Messenger) Open(ctx context.Context, conversationID string) error {
	if err := m.store.SetActive(conversationID); err != nil {
		return userError("open conversation", "Conversation not found", err)
	}
	if err := m.realtime.JoinConversation(ctx, conversationID); err != nil {
		m.logger.Warn("join room failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	if err := m.timeline.LoadPage(ctx, conversationID, 1); err != nil {
		if m.store.Active() == conversationID {
			m.store.ClearActive()
			m.timeline.Reset()
		}
		m.notifier.publish(Change{Kind: ChangeConversations, ConversationID: conversationID})
		m.notifier.publish(Change{Kind: ChangeError, ConversationID: conversationID, Message: UserMessage(err)})
		return err
	}
	if m.timeline.ConversationID() != conversationID {
		m.logger.Debug("open superseded", zap.String("conversation_id", conversationID))
		return nil
	}

	if err := m.backend.MarkConversationRead(ctx, conversationID); err != nil {
		m.logger.Warn("mark conversation read failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	m.notifier.publish(Change{Kind: ChangeConversations, ConversationID: conversationID})
	m.notifier.publish(Change{Kind: ChangeTimeline, ConversationID: conversationID})
	return nil
}

// LoadOlder prepends the next page of the active conversation. It is a
// no-op when no older messages remain.
func (m *Messenger) LoadOlder(ctx context.Context) error {
	conversationID := m.timeline.ConversationID()
	if conversationID == "" {
		return userError("load messages", "No conversation is open", ErrNoActiveConversation)
	}
	if !m.timeline.HasMore() {
		return nil
	}
	if err := m.timeline.LoadPage(ctx, conversationID, m.timeline.Page()+1); err != nil {
		m.notifier.publish(Change{Kind: ChangeError, ConversationID: conversationID, Message: UserMessage(err)})
		return err
	}
	m.notifier.publish(Change{Kind: ChangeTimeline, ConversationID: conversationID})
	return nil
}

// Send submits a draft. An empty ConversationID targets the active conversation.
func (m *Messenger) Send(ctx context.Context, d Draft) (*PendingSend, error) {
	if d.ConversationID == "" {
		d.ConversationID = m.store.Active()
	}
	if d.ConversationID == "" {
		return nil, userError("send message", "No conversation is open", ErrNoActiveConversation)
	}
	return m.sender.Send(ctx, d)
}

// Preview issues a local preview handle for a picked file.
func (m *Messenger) Preview(filename string) string {
	return m.sender.Preview(filename)
}

// CancelPreview releases a discarded preview.
func (m *Messenger) CancelPreview(handle string) bool {
	return m.sender.CancelPreview(handle)
}

// DeleteMessage deletes messageID from the open conversation with scope.
func (m *Messenger) DeleteMessage(ctx context.Context, messageID string, scope model.DeleteScope) error {
	switch scope {
	case model.DeleteForMe:
		return m.deleter.DeleteForMe(ctx, messageID)
	case model.DeleteForEveryone:
		return m.deleter.DeleteForEveryone(ctx, messageID)
	}
	return userError("delete message", "Unknown deletion scope", fmt.Errorf("invalid scope %q", scope))
}

// DeleteConversation removes a conversation.
func (m *Messenger) DeleteConversation(ctx context.Context, conversationID string) error {
	return m.deleter.DeleteConversation(ctx, conversationID)
}

// Conversations returns the conversation list in display order.
func (m *Messenger) Conversations() []model.Conversation {
	return m.store.List()
}

// Conversation returns one conversation.
func (m *Messenger) Conversation(conversationID string) (model.Conversation, bool) {
	return m.store.Get(conversationID)
}

// Active returns the open conversation id.
func (m *Messenger) Active() string {
	return m.store.Active()
}

// Messages yields the open conversation's messages visible to the user.
func (m *Messenger) Messages() iter.Seq[model.Message] {
	return m.timeline.FilterForViewer(m.identity.UserID)
}

// Render returns the open conversation as grouped entries in loc.
func (m *Messenger) Render(loc *time.Location) []Entry {
	return Group(m.Messages(), loc)
}

// HasMore reports whether older messages can be loaded.
func (m *Messenger) HasMore() bool {
	return m.timeline.HasMore()
}

// Online reports whether userID is online.
func (m *Messenger) Online(userID string) bool {
	return m.realtime.Online(userID)
}

// OnlineUsers lists online user ids.
func (m *Messenger) OnlineUsers() []string {
	return m.realtime.OnlineUsers()
}

// Connected reports whether the realtime channel is up.
func (m *Messenger) Connected() bool {
	return m.realtime.Connected()
}

// Subscribe returns a channel of changes and a function that ends the
// subscription. Slow subscribers miss changes.
func (m *Messenger) Subscribe() (<-chan Change, func()) {
	return m.notifier.subscribe()
}

// EndSubscriptions closes every subscription channel. Later calls to
// Subscribe return a closed channel.
func (m *Messenger) EndSubscriptions() {
	m.notifier.close()
}

// Close disconnects the realtime channel and waits for in-flight sends.
func (m *Messenger) Close() error {
	err := m.realtime.Close()
	m.sender.Wait()
	m.acks.Wait()
	m.notifier.close()
	return err
}

// HandleNewMessage routes an inbound message. The store always sees it;
// the timeline only when it belongs to the open conversation and was sent
// by someone else, in which case it is acknowledged as read. Otherwise the
// conversation's unread counter is bumped.
func (m *Messenger) HandleNewMessage(ctx context.Context, msg model.Message) {
	msg.Normalize()
	own := msg.Sender.ID == m.identity.UserID
	known := m.store.ApplyIncomingMessage(ctx, msg)

	switch {
	case own:
		metrics.MessagesReceived.WithLabelValues("own").Inc()
	case msg.ConversationID == m.store.Active():
		msg.IsNew = true
		if m.timeline.Append(msg) {
			metrics.MessagesReceived.WithLabelValues("appended").Inc()
			m.ackRead(msg.ID)
			m.notifier.publish(Change{Kind: ChangeTimeline, ConversationID: msg.ConversationID})
		} else {
			metrics.MessagesReceived.WithLabelValues("duplicate").Inc()
		}
	case known:
		m.store.IncrementUnread(msg.ConversationID)
		metrics.MessagesReceived.WithLabelValues("unread").Inc()
	default:
		metrics.MessagesReceived.WithLabelValues("discovered").Inc()
	}

	m.notifier.publish(Change{Kind: ChangeConversations, ConversationID: msg.ConversationID})
}

func (m *Messenger) ackRead(messageID string) {
	if messageID == "" {
		return
	}
	m.acks.Add(1)
	go func() {
		defer m.acks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), readAckTimeout)
		defer cancel()
		if err := m.backend.MarkRead(ctx, messageID); err != nil {
			m.logger.Warn("read ack failed", zap.String("message_id", messageID), zap.Error(err))
			return
		}
		m.timeline.MarkRead(messageID)
	}()
}

// HandleMessageDeleted tombstones a message deleted for everyone.
func (m *Messenger) HandleMessageDeleted(ctx context.Context, evt model.MessageDeleted) {
	if m.timeline.ApplyTombstone(evt.MessageID) {
		m.notifier.publish(Change{Kind: ChangeTimeline, ConversationID: m.timeline.ConversationID()})
	}
	if m.store.ApplyTombstone(evt.ConversationID, evt.MessageID) {
		m.notifier.publish(Change{Kind: ChangeConversations, ConversationID: evt.ConversationID})
	}
}

// HandlePresence forwards presence changes to subscribers.
func (m *Messenger) HandlePresence(ctx context.Context) {
	m.notifier.publish(Change{Kind: ChangePresence})
}

// HandleConnectionState forwards connection changes to subscribers.
func (m *Messenger) HandleConnectionState(ctx context.Context, connected bool) {
	m.notifier.publish(Change{Kind: ChangeConnection, Connected: &connected})
}
