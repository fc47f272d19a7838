// Package handler provides the local HTTP API that UI adapters use to drive
// a Messenger.
package handler

import (
	"context"
	"iter"
	"time"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/session"
)

// Messenger is the part of *chatsync.Messenger the handlers use.
type Messenger interface {
	Identity() session.Identity
	Conversations() []model.Conversation
	Conversation(id string) (model.Conversation, bool)
	Active() string
	Open(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error

	Messages() iter.Seq[model.Message]
	Render(loc *time.Location) []chatsync.Entry
	HasMore() bool
	LoadOlder(ctx context.Context) error
	Send(ctx context.Context, d chatsync.Draft) (*chatsync.PendingSend, error)
	DeleteMessage(ctx context.Context, id string, scope model.DeleteScope) error

	OnlineUsers() []string
	Connected() bool
	Subscribe() (<-chan chatsync.Change, func())
}

var _ Messenger = (*chatsync.Messenger)(nil)
