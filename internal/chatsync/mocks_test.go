package chatsync

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/realtime"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

const selfID = "u1"

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func conversation(id, peer string, updated time.Time) model.Conversation {
	return model.Conversation{
		ID:           id,
		Participants: []model.UserRef{{ID: selfID}, {ID: peer}},
		UpdatedAt:    updated,
	}
}

func message(id, convID, sender, content string, createdAt time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: convID,
		Sender:         model.UserRef{ID: sender},
		Content:        content,
		CreatedAt:      createdAt,
	}
}

// mockBackend is a testify mock of Backend. Returned values are copied so
// components can mutate them without touching the fixtures.
type mockBackend struct {
	mock.Mock
}

func (b *mockBackend) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	args := b.Called(ctx)
	convs, _ := args.Get(0).([]model.Conversation)
	out := make([]model.Conversation, len(convs))
	for i := range convs {
		out[i] = convs[i].Clone()
	}
	return out, args.Error(1)
}

func (b *mockBackend) UnreadCount(ctx context.Context, conversationID string) (int, error) {
	args := b.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

func (b *mockBackend) UnreadCounts(ctx context.Context, conversationIDs []string) (map[string]int, error) {
	args := b.Called(ctx, conversationIDs)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

func (b *mockBackend) ListMessages(ctx context.Context, conversationID string, page, limit int) (*model.MessagePage, error) {
	args := b.Called(ctx, conversationID, page, limit)
	p, _ := args.Get(0).(*model.MessagePage)
	if p == nil {
		return nil, args.Error(1)
	}
	cp := &model.MessagePage{HasMore: p.HasMore, Messages: make([]model.Message, len(p.Messages))}
	for i := range p.Messages {
		cp.Messages[i] = p.Messages[i].Clone()
	}
	return cp, args.Error(1)
}

func (b *mockBackend) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.Message, error) {
	args := b.Called(ctx, req)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (b *mockBackend) SendAttachment(ctx context.Context, upload *AttachmentUpload, progress ProgressFunc) (*model.Message, error) {
	args := b.Called(ctx, upload, progress)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (b *mockBackend) MarkRead(ctx context.Context, messageID string) error {
	return b.Called(ctx, messageID).Error(0)
}

func (b *mockBackend) MarkConversationRead(ctx context.Context, conversationID string) error {
	return b.Called(ctx, conversationID).Error(0)
}

func (b *mockBackend) DeleteMessage(ctx context.Context, messageID string, scope model.DeleteScope) error {
	return b.Called(ctx, messageID, scope).Error(0)
}

func (b *mockBackend) DeleteConversation(ctx context.Context, conversationID string) error {
	return b.Called(ctx, conversationID).Error(0)
}

// fakeRealtime records outbound intents.
type fakeRealtime struct {
	mu        sync.Mutex
	handler   realtime.Handler
	rooms     []string
	sent      []model.Message
	deleted   []model.MessageDeleted
	online    map[string]bool
	connected bool
	sendErr   error
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{online: map[string]bool{}}
}

func (r *fakeRealtime) Connect(ctx context.Context, h realtime.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	r.connected = true
	return nil
}

func (r *fakeRealtime) JoinConversation(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, conversationID)
	return nil
}

func (r *fakeRealtime) SendMessage(ctx context.Context, msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *fakeRealtime) DeleteMessage(ctx context.Context, evt model.MessageDeleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, evt)
	return nil
}

func (r *fakeRealtime) Online(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *fakeRealtime) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, ok := range r.online {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *fakeRealtime) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *fakeRealtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	return nil
}

func (r *fakeRealtime) sentMessages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Message(nil), r.sent...)
}

func (r *fakeRealtime) deletions() []model.MessageDeleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.MessageDeleted(nil), r.deleted...)
}

func (r *fakeRealtime) joined() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rooms...)
}

// fixture is a store and timeline over a mock backend, with c1 open.
type fixture struct {
	backend  *mockBackend
	rt       *fakeRealtime
	store    *Store
	timeline *Timeline
	changes  []Change
	mu       sync.Mutex
}

func newFixture() *fixture {
	f := &fixture{backend: &mockBackend{}, rt: newFakeRealtime()}
	f.store = NewStore(f.backend, StoreOptions{BatchUnread: true}, logger.Nop())
	f.timeline = NewTimeline(f.backend, TimelineOptions{PageSize: 20}, logger.Nop())
	return f
}

func (f *fixture) notify(c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
}

func (f *fixture) kinds() []ChangeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChangeKind, 0, len(f.changes))
	for _, c := range f.changes {
		out = append(out, c.Kind)
	}
	return out
}

// pages splits newest-first messages into backend pages of size.
func pages(newestFirst []model.Message, size int) []*model.MessagePage {
	var out []*model.MessagePage
	for start := 0; start < len(newestFirst); start += size {
		end := min(start+size, len(newestFirst))
		out = append(out, &model.MessagePage{
			Messages: newestFirst[start:end],
			HasMore:  end < len(newestFirst),
		})
	}
	return out
}

// history builds n messages in convID, one minute apart, newest first.
func history(convID string, n int) []model.Message {
	out := make([]model.Message, 0, n)
	for i := n - 1; i >= 0; i-- {
		sender := "u2"
		if i%2 == 0 {
			sender = selfID
		}
		out = append(out, message(fmt.Sprintf("m%02d", i), convID, sender, fmt.Sprintf("msg %d", i), at(i)))
	}
	return out
}

// progressReader is an attachment body that reads as empty.
type progressReader struct{}

func (progressReader) Read([]byte) (int, error) { return 0, io.EOF }
