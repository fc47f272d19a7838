package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRef_UnmarshalBothShapes(t *testing.T) {
	var msgs []Message
	err := json.Unmarshal([]byte(`[
		{"id":"m1","conversationId":"c1","sender":"u1","content":"a","createdAt":"2024-05-01T10:00:00Z"},
		{"id":"m2","conversationId":"c1","sender":{"_id":"u2","name":"Bo","avatar":"/a.png"},"content":"b","createdAt":"2024-05-01T10:01:00Z"},
		{"id":"m3","conversationId":"c1","sender":null,"content":"c","createdAt":"2024-05-01T10:02:00Z"}
	]`), &msgs)
	require.NoError(t, err)

	assert.Equal(t, UserRef{ID: "u1"}, msgs[0].Sender)
	assert.Equal(t, UserRef{ID: "u2", Name: "Bo", Avatar: "/a.png"}, msgs[1].Sender)
	assert.Equal(t, UserRef{}, msgs[2].Sender)
}

func TestMessage_ClientFlagsNotSerialized(t *testing.T) {
	data, err := json.Marshal(Message{TempID: "t1", ConversationID: "c1", IsTemp: true, IsNew: true})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "isTemp")
	assert.NotContains(t, string(data), "IsNew")
	assert.Contains(t, string(data), `"tempId":"t1"`)
}

func TestMessage_Tombstone(t *testing.T) {
	m := Message{ID: "m1", Content: "secret", Attachment: &Attachment{Type: "image/png"}}
	m.Tombstone()

	assert.True(t, m.IsDeleted)
	assert.Equal(t, DeletedPlaceholder, m.Content)
	assert.Nil(t, m.Attachment)
}

func TestMessage_NormalizeDeleted(t *testing.T) {
	m := Message{ID: "m1", Content: "secret", IsDeleted: true, Attachment: &Attachment{Type: "image/png"}}
	lm := m.Preview()
	assert.Equal(t, DeletedPlaceholder, lm.Content)
	assert.Nil(t, lm.Attachment)

	m.Normalize()
	assert.Equal(t, DeletedPlaceholder, m.Content)
	assert.Nil(t, m.Attachment)

	live := Message{ID: "m2", Content: "hi"}
	live.Normalize()
	assert.Equal(t, "hi", live.Content)
	assert.False(t, live.IsDeleted)
}

func TestMessage_HiddenForAndKey(t *testing.T) {
	m := Message{TempID: "t1", DeletedFor: []string{"u1"}}
	assert.True(t, m.HiddenFor("u1"))
	assert.False(t, m.HiddenFor("u2"))
	assert.False(t, m.HiddenFor(""))
	assert.Equal(t, "t1", m.Key())

	m.ID = "m1"
	assert.Equal(t, "m1", m.Key())
}

func TestMessage_CloneIsDeep(t *testing.T) {
	m := Message{Attachment: &Attachment{URL: "a"}, DeletedFor: []string{"u1"}}
	c := m.Clone()
	c.Attachment.URL = "b"
	c.DeletedFor[0] = "u2"

	assert.Equal(t, "a", m.Attachment.URL)
	assert.Equal(t, "u1", m.DeletedFor[0])
}

func TestConversation_ActivityAtAndPeer(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := Conversation{
		ID:           "c1",
		Participants: []UserRef{{ID: "u1"}, {ID: "u2"}},
		UpdatedAt:    t0,
	}
	assert.Equal(t, t0, c.ActivityAt())

	c.LastMessage = &LastMessage{CreatedAt: t0.Add(time.Hour)}
	assert.Equal(t, t0.Add(time.Hour), c.ActivityAt())

	c.LastMessage.CreatedAt = t0.Add(-time.Hour)
	assert.Equal(t, t0, c.ActivityAt())

	assert.Equal(t, "u2", c.Peer("u1").ID)
	assert.True(t, c.HasParticipant("u2"))
	assert.False(t, c.HasParticipant("u3"))
}

func TestDeleteScope_Valid(t *testing.T) {
	assert.True(t, DeleteForMe.Valid())
	assert.True(t, DeleteForEveryone.Valid())
	assert.False(t, DeleteScope("all").Valid())
}
