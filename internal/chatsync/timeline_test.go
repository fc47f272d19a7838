package chatsync

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
)

func keys(seq []model.Message) []string {
	out := make([]string, len(seq))
	for i, m := range seq {
		out[i] = m.Key()
	}
	return out
}

func visible(t *Timeline, viewer string) []model.Message {
	return slices.Collect(t.FilterForViewer(viewer))
}

func assertChronological(t *testing.T, msgs []model.Message) {
	t.Helper()
	assert.True(t, slices.IsSortedFunc(msgs, compareCreatedAt), "timeline out of order: %v", keys(msgs))
}

func openWith(t *testing.T, f *fixture, convID string, msgs ...model.Message) {
	t.Helper()
	newestFirst := slices.Clone(msgs)
	slices.Reverse(newestFirst)
	f.backend.On("ListMessages", mock.Anything, convID, 1, 20).
		Return(&model.MessagePage{Messages: newestFirst}, nil).Once()
	require.NoError(t, f.timeline.LoadPage(context.Background(), convID, 1))
}

func TestTimeline_Pagination(t *testing.T) {
	f := newFixture()
	all := history("c1", 45)
	pp := pages(all, 20)
	for i, p := range pp {
		f.backend.On("ListMessages", mock.Anything, "c1", i+1, 20).Return(p, nil)
	}
	ctx := context.Background()

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 1))
	msgs := visible(f.timeline, selfID)
	assert.Len(t, msgs, 20)
	assert.Equal(t, "m25", msgs[0].ID)
	assert.Equal(t, "m44", msgs[19].ID)
	assert.True(t, f.timeline.HasMore())

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 2))
	msgs = visible(f.timeline, selfID)
	assert.Len(t, msgs, 40)
	assert.Equal(t, "m05", msgs[0].ID)
	assert.True(t, f.timeline.HasMore())

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 3))
	msgs = visible(f.timeline, selfID)
	assert.Len(t, msgs, 45)
	assert.Equal(t, "m00", msgs[0].ID)
	assert.False(t, f.timeline.HasMore())
	assert.Equal(t, 3, f.timeline.Page())
	assertChronological(t, msgs)
}

func TestTimeline_PageOneReplaces(t *testing.T) {
	f := newFixture()
	all := history("c1", 30)
	pp := pages(all, 20)
	f.backend.On("ListMessages", mock.Anything, "c1", 1, 20).Return(pp[0], nil)
	f.backend.On("ListMessages", mock.Anything, "c1", 2, 20).Return(pp[1], nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.timeline.LoadPage(ctx, "c1", 1))
		assert.Equal(t, 20, f.timeline.Len())
	}

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 2))
	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 2))
	assert.Equal(t, 30, f.timeline.Len())

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 1))
	assert.Equal(t, 20, f.timeline.Len())
}

func TestTimeline_OverlappingPageSkipsPresentEntries(t *testing.T) {
	f := newFixture()
	all := history("c1", 25)
	// A message arrived between the two fetches, shifting page 2 by one.
	f.backend.On("ListMessages", mock.Anything, "c1", 1, 20).Return(&model.MessagePage{Messages: all[:20], HasMore: true}, nil)
	f.backend.On("ListMessages", mock.Anything, "c1", 2, 20).Return(&model.MessagePage{Messages: all[19:], HasMore: false}, nil)
	ctx := context.Background()

	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 1))
	require.NoError(t, f.timeline.LoadPage(ctx, "c1", 2))

	msgs := visible(f.timeline, selfID)
	assert.Len(t, msgs, 25)
	assertChronological(t, msgs)
}

func TestTimeline_StalePageIsDiscarded(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)))
	f.backend.On("ListMessages", mock.Anything, "c2", 2, 20).
		Return(&model.MessagePage{Messages: []model.Message{message("x", "c2", "u3", "b", at(0))}}, nil)

	require.NoError(t, f.timeline.LoadPage(context.Background(), "c2", 2))
	assert.Equal(t, []string{"m1"}, keys(visible(f.timeline, selfID)))
}

func TestTimeline_SupersededFirstPageIsDiscarded(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.On("ListMessages", mock.Anything, "c1", 1, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&model.MessagePage{Messages: []model.Message{message("m1", "c1", "u2", "old", at(1))}}, nil).Once()

	done := make(chan error, 1)
	go func() {
		done <- f.timeline.LoadPage(context.Background(), "c1", 1)
	}()
	<-started

	openWith(t, f, "c2", message("x1", "c2", "u3", "new", at(2)))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "c2", f.timeline.ConversationID())
	assert.Equal(t, []string{"x1"}, keys(visible(f.timeline, selfID)))
	assert.True(t, f.timeline.Append(message("x2", "c2", "u3", "live", at(3))))
}

func TestTimeline_ResetDiscardsInFlightFirstPage(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.On("ListMessages", mock.Anything, "c1", 1, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&model.MessagePage{Messages: []model.Message{message("m1", "c1", "u2", "a", at(1))}}, nil).Once()

	done := make(chan error, 1)
	go func() {
		done <- f.timeline.LoadPage(context.Background(), "c1", 1)
	}()
	<-started
	f.timeline.Reset()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, f.timeline.ConversationID())
	assert.Zero(t, f.timeline.Len())
}

func TestTimeline_DeletedMessagesFromServerAreTombstoned(t *testing.T) {
	f := newFixture()
	deleted := message("m1", "c1", "u2", "secret text", at(1))
	deleted.IsDeleted = true
	deleted.Attachment = &model.Attachment{Type: "image/png", URL: "http://x/y.png"}
	openWith(t, f, "c1", deleted, message("m2", "c1", "u2", "b", at(2)))

	live := message("m3", "c1", "u2", "also secret", at(3))
	live.IsDeleted = true
	live.Attachment = &model.Attachment{Type: "application/pdf", URL: "http://x/z.pdf"}
	require.True(t, f.timeline.Append(live))

	msgs := visible(f.timeline, selfID)
	require.Len(t, msgs, 3)
	for _, i := range []int{0, 2} {
		assert.Equal(t, model.DeletedPlaceholder, msgs[i].Content)
		assert.Nil(t, msgs[i].Attachment)
	}
	assert.Equal(t, "b", msgs[1].Content)
}

func TestTimeline_ReplaceProvisionalWithDeletedConfirmation(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1")
	require.True(t, f.timeline.Append(model.Message{
		TempID: "t1", ConversationID: "c1", Sender: model.UserRef{ID: selfID},
		Content: "hi", CreatedAt: at(1), IsTemp: true,
	}))

	confirmed := message("m1", "c1", selfID, "hi", at(1))
	confirmed.IsDeleted = true
	require.True(t, f.timeline.ReplaceProvisional("t1", confirmed))

	msgs := visible(f.timeline, selfID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DeletedPlaceholder, msgs[0].Content)
}

func TestTimeline_LoadPageFailure(t *testing.T) {
	f := newFixture()
	f.backend.On("ListMessages", mock.Anything, "c1", 1, 20).Return(nil, errors.New("down"))

	err := f.timeline.LoadPage(context.Background(), "c1", 1)
	require.Error(t, err)
	assert.Equal(t, "Failed to load messages", UserMessage(err))
}

func TestTimeline_AppendRejectsDuplicates(t *testing.T) {
	provisional := model.Message{
		TempID: "t1", ConversationID: "c1", Sender: model.UserRef{ID: selfID},
		Content: "Hello", CreatedAt: at(10), IsTemp: true,
	}

	tests := []struct {
		name     string
		incoming model.Message
		dup      bool
	}{
		{"same id", message("m1", "c1", "u2", "other", at(50)), true},
		{"temp id echoed as id", model.Message{ID: "t1", ConversationID: "c1", Content: "x", CreatedAt: at(50)}, true},
		{"temp id echoed", model.Message{ID: "m9", TempID: "t1", ConversationID: "c1", Content: "x", CreatedAt: at(50)}, true},
		{"same content inside window", model.Message{ID: "m9", ConversationID: "c1", Sender: model.UserRef{ID: selfID}, Content: "Hello", CreatedAt: at(10).Add(59 * time.Second)}, true},
		{"same content outside window", model.Message{ID: "m9", ConversationID: "c1", Sender: model.UserRef{ID: selfID}, Content: "Hello", CreatedAt: at(10).Add(61 * time.Second)}, false},
		{"same content from peer", model.Message{ID: "m9", ConversationID: "c1", Sender: model.UserRef{ID: "u2"}, Content: "Hello", CreatedAt: at(10)}, false},
		{"new message", message("m2", "c1", "u2", "fresh", at(11)), false},
		{"other conversation", message("m3", "c2", "u2", "elsewhere", at(11)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			openWith(t, f, "c1", message("m1", "c1", "u2", "first", at(1)))
			require.True(t, f.timeline.Append(provisional))

			added := f.timeline.Append(tt.incoming)

			if tt.dup || tt.incoming.ConversationID != "c1" {
				assert.False(t, added)
				assert.Equal(t, 2, f.timeline.Len())
			} else {
				assert.True(t, added)
				assert.Equal(t, 3, f.timeline.Len())
			}
		})
	}
}

func TestTimeline_AppendKeepsChronologicalOrder(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)), message("m3", "c1", "u2", "c", at(3)))

	require.True(t, f.timeline.Append(message("m4", "c1", "u2", "d", at(4))))
	require.True(t, f.timeline.Append(message("m2", "c1", "u2", "b", at(2))))

	msgs := visible(f.timeline, selfID)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, keys(msgs))
}

func TestTimeline_ReplaceProvisionalInPlace(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)))
	require.True(t, f.timeline.Append(model.Message{TempID: "t1", ConversationID: "c1", Sender: model.UserRef{ID: selfID}, Content: "Hello", CreatedAt: at(5), IsTemp: true}))
	require.True(t, f.timeline.Append(message("m2", "c1", "u2", "b", at(6))))

	confirmed := message("M1", "c1", selfID, "Hello", at(5).Add(time.Second))
	require.True(t, f.timeline.ReplaceProvisional("t1", confirmed))
	assert.False(t, f.timeline.ReplaceProvisional("t1", confirmed))

	msgs := visible(f.timeline, selfID)
	assert.Equal(t, []string{"m1", "M1", "m2"}, keys(msgs))
	assert.False(t, msgs[1].IsTemp)
	assert.Equal(t, "t1", msgs[1].TempID)

	// The realtime echo of the confirmed message is absorbed.
	assert.False(t, f.timeline.Append(confirmed))
	assert.Equal(t, 3, f.timeline.Len())
}

func TestTimeline_ReplaceProvisionalDropsRacedCopy(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1")
	require.True(t, f.timeline.Append(model.Message{TempID: "t1", ConversationID: "c1", Sender: model.UserRef{ID: selfID}, Content: "Hi", CreatedAt: at(5), IsTemp: true}))
	// An echo that escaped the heuristic (edited content server side).
	require.True(t, f.timeline.Append(message("M1", "c1", selfID, "Hi!", at(8))))

	require.True(t, f.timeline.ReplaceProvisional("t1", message("M1", "c1", selfID, "Hi!", at(8))))
	assert.Equal(t, []string{"M1"}, keys(visible(f.timeline, selfID)))
}

func TestTimeline_RemoveProvisional(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)))
	before := visible(f.timeline, selfID)
	require.True(t, f.timeline.Append(model.Message{TempID: "t1", ConversationID: "c1", Content: "x", CreatedAt: at(2), IsTemp: true}))

	assert.True(t, f.timeline.RemoveProvisional("t1"))
	assert.False(t, f.timeline.RemoveProvisional("t1"))
	assert.Equal(t, before, visible(f.timeline, selfID))
}

func TestTimeline_TombstoneKeepsPosition(t *testing.T) {
	f := newFixture()
	m2 := message("m2", "c1", "u2", "secret", at(2))
	m2.Attachment = &model.Attachment{Type: "image/png", Filename: "a.png", URL: "https://files/a.png"}
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)), m2, message("m3", "c1", "u2", "c", at(3)))

	require.True(t, f.timeline.ApplyTombstone("m2"))
	assert.False(t, f.timeline.ApplyTombstone("missing"))

	msgs := visible(f.timeline, selfID)
	assert.Equal(t, []string{"m1", "m2", "m3"}, keys(msgs))
	assert.True(t, msgs[1].IsDeleted)
	assert.Equal(t, model.DeletedPlaceholder, msgs[1].Content)
	assert.Nil(t, msgs[1].Attachment)
}

func TestTimeline_FilterForViewer(t *testing.T) {
	f := newFixture()
	hidden := message("m2", "c1", "u2", "hidden for me", at(2))
	hidden.DeletedFor = []string{selfID}
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)), hidden, message("m3", "c1", "u2", "c", at(3)))

	seq := f.timeline.FilterForViewer(selfID)
	assert.Equal(t, []string{"m1", "m3"}, keys(slices.Collect(seq)))
	// Ranging again reflects the current state.
	require.True(t, f.timeline.Append(message("m4", "c1", "u2", "d", at(4))))
	assert.Equal(t, []string{"m1", "m3", "m4"}, keys(slices.Collect(seq)))

	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, keys(visible(f.timeline, "u2")))

	last, ok := f.timeline.LastVisible(selfID)
	require.True(t, ok)
	assert.Equal(t, "m4", last.ID)

	// Early break stops the iteration.
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestTimeline_PageOneKeepsPendingSends(t *testing.T) {
	f := newFixture()
	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)))
	require.True(t, f.timeline.Append(model.Message{TempID: "t1", ConversationID: "c1", Sender: model.UserRef{ID: selfID}, Content: "pending", CreatedAt: at(9), IsTemp: true}))

	openWith(t, f, "c1", message("m1", "c1", "u2", "a", at(1)), message("m2", "c1", "u2", "b", at(2)))

	assert.Equal(t, []string{"m1", "m2", "t1"}, keys(visible(f.timeline, selfID)))
}
