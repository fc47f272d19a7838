package chatsync

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func assertSorted(t *testing.T, convs []model.Conversation) {
	t.Helper()
	for i := 1; i < len(convs); i++ {
		assert.False(t, convs[i].ActivityAt().After(convs[i-1].ActivityAt()),
			"%s is newer than %s", convs[i].ID, convs[i-1].ID)
	}
}

func TestStore_LoadOrdersByActivity(t *testing.T) {
	f := newFixture()
	c2 := conversation("c2", "u3", at(1))
	c2.LastMessage = &model.LastMessage{ID: "m9", Content: "late", CreatedAt: at(30)}
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{
		conversation("c1", "u2", at(10)),
		c2,
		conversation("c3", "u4", at(10)),
		conversation("c4", "u5", at(5)),
	}, nil)
	f.backend.On("UnreadCounts", mock.Anything, []string{"c1", "c2", "c3", "c4"}).
		Return(map[string]int{"c1": 2, "c4": 1}, nil)

	require.NoError(t, f.store.Load(context.Background()))

	list := f.store.List()
	// c1 and c3 tie and keep fetch order.
	assert.Equal(t, []string{"c2", "c1", "c3", "c4"}, ids(list))
	assert.Equal(t, 2, list[1].UnreadCount)
	assert.Equal(t, 3, f.store.UnreadTotal())
	f.backend.AssertExpectations(t)
}

func TestStore_LoadFansOutUnreadCounts(t *testing.T) {
	backend := &mockBackend{}
	store := NewStore(backend, StoreOptions{UnreadParallel: 2}, logger.Nop())
	backend.On("ListConversations", mock.Anything).Return([]model.Conversation{
		conversation("c1", "u2", at(3)),
		conversation("c2", "u3", at(2)),
		conversation("c3", "u4", at(1)),
	}, nil)
	backend.On("UnreadCount", mock.Anything, "c1").Return(1, nil)
	backend.On("UnreadCount", mock.Anything, "c2").Return(0, nil)
	backend.On("UnreadCount", mock.Anything, "c3").Return(7, nil)

	require.NoError(t, store.Load(context.Background()))

	c3, ok := store.Get("c3")
	require.True(t, ok)
	assert.Equal(t, 7, c3.UnreadCount)
	backend.AssertNotCalled(t, "UnreadCounts", mock.Anything, mock.Anything)
	backend.AssertNumberOfCalls(t, "UnreadCount", 3)
}

func TestStore_LoadFailureKeepsState(t *testing.T) {
	f := newFixture()
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{conversation("c1", "u2", at(1))}, nil).Once()
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	f.backend.On("ListConversations", mock.Anything).Return(nil, errors.New("boom")).Once()
	err := f.store.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, "Failed to load conversations", UserMessage(err))
	assert.Equal(t, []string{"c1"}, ids(f.store.List()))
}

func TestStore_UnreadCountFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{conversation("c1", "u2", at(1))}, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	require.NoError(t, f.store.Load(context.Background()))
	assert.Len(t, f.store.List(), 1)
}

func TestStore_ApplyIncomingMessageKeepsOrdering(t *testing.T) {
	f := newFixture()
	var convs []model.Conversation
	for i, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		convs = append(convs, conversation(id, "u9", at(i)))
	}
	f.backend.On("ListConversations", mock.Anything).Return(convs, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		id := convs[rng.Intn(len(convs))].ID
		msg := message("", id, "u9", "x", at(rng.Intn(300)))
		msg.ID = id + "-" + msg.CreatedAt.String()
		require.True(t, f.store.ApplyIncomingMessage(context.Background(), msg))
		assertSorted(t, f.store.List())
	}
	f.backend.AssertNumberOfCalls(t, "ListConversations", 1)
}

func TestStore_ApplyIncomingMessageMovesToTop(t *testing.T) {
	f := newFixture()
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{
		conversation("c1", "u2", at(5)),
		conversation("c2", "u3", at(1)),
	}, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	ok := f.store.ApplyIncomingMessage(context.Background(), message("m1", "c2", "u3", "hey", at(9)))

	require.True(t, ok)
	list := f.store.List()
	assert.Equal(t, []string{"c2", "c1"}, ids(list))
	assert.Equal(t, "hey", list[0].LastMessage.Content)
	assert.Equal(t, at(9), list[0].UpdatedAt)

	// An older message does not regress the preview.
	f.store.ApplyIncomingMessage(context.Background(), message("m0", "c2", "u3", "old", at(2)))
	c2, _ := f.store.Get("c2")
	assert.Equal(t, "hey", c2.LastMessage.Content)
}

func TestStore_UnknownConversationTriggersLoad(t *testing.T) {
	f := newFixture()
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{conversation("c1", "u2", at(1))}, nil).Once()
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{"c9": 1}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	c9 := conversation("c9", "u7", at(4))
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{c9, conversation("c1", "u2", at(1))}, nil).Once()

	ok := f.store.ApplyIncomingMessage(context.Background(), message("m1", "c9", "u7", "new", at(4)))

	assert.False(t, ok)
	assert.Equal(t, []string{"c9", "c1"}, ids(f.store.List()))
	got, _ := f.store.Get("c9")
	assert.Equal(t, 1, got.UnreadCount)
}

func TestStore_SetActiveAndUnread(t *testing.T) {
	f := newFixture()
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{
		conversation("c1", "u2", at(2)),
		conversation("c2", "u3", at(1)),
	}, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{"c1": 4}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	require.NoError(t, f.store.SetActive("c1"))
	c1, _ := f.store.Get("c1")
	assert.Equal(t, 0, c1.UnreadCount)
	assert.Equal(t, "c1", f.store.Active())

	assert.False(t, f.store.IncrementUnread("c1"))
	assert.True(t, f.store.IncrementUnread("c2"))
	c2, _ := f.store.Get("c2")
	assert.Equal(t, 1, c2.UnreadCount)

	assert.ErrorIs(t, f.store.SetActive("nope"), ErrConversationNotFound)
}

func TestStore_RemoveAndRestore(t *testing.T) {
	f := newFixture()
	c1 := conversation("c1", "u2", at(2))
	c1.LastMessage = &model.LastMessage{ID: "m1", Content: "hi", CreatedAt: at(2)}
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{c1, conversation("c2", "u3", at(1))}, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	require.NoError(t, f.store.Load(context.Background()))
	require.NoError(t, f.store.SetActive("c1"))
	before := f.store.List()

	snap, err := f.store.Remove("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", snap.Active())
	assert.Equal(t, "", f.store.Active())
	assert.Equal(t, []string{"c2"}, ids(f.store.List()))

	f.store.Restore(snap)
	assert.Equal(t, before, f.store.List())
	assert.Equal(t, "c1", f.store.Active())

	_, err = f.store.Remove("missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestStore_ApplyTombstone(t *testing.T) {
	f := newFixture()
	c1 := conversation("c1", "u2", at(2))
	c1.LastMessage = &model.LastMessage{ID: "m1", Content: "secret", CreatedAt: at(2), Attachment: &model.Attachment{Type: "image/png"}}
	f.backend.On("ListConversations", mock.Anything).Return([]model.Conversation{c1}, nil)
	f.backend.On("UnreadCounts", mock.Anything, mock.Anything).Return(map[string]int{}, nil)
	require.NoError(t, f.store.Load(context.Background()))

	assert.False(t, f.store.ApplyTombstone("c1", "other"))
	assert.True(t, f.store.ApplyTombstone("", "m1"))

	got, _ := f.store.Get("c1")
	assert.Equal(t, model.DeletedPlaceholder, got.LastMessage.Content)
	assert.Nil(t, got.LastMessage.Attachment)
}
