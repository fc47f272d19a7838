package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
)

// Handler receives inbound events after the bridge has validated them.
// Calls are made from the bridge's single read goroutine.
type Handler interface {
	HandleNewMessage(ctx context.Context, msg model.Message)
	HandleMessageDeleted(ctx context.Context, evt model.MessageDeleted)
	HandlePresence(ctx context.Context)
	HandleConnectionState(ctx context.Context, connected bool)
}

// Options tunes the bridge.
type Options struct {
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Bridge owns the session's single realtime connection. It announces the
// user, keeps at most one conversation room joined and redials with
// exponential backoff when the transport drops.
type Bridge struct {
	dialer   Dialer
	userID   string
	opts     Options
	logger   *logger.Logger
	presence *Presence

	mu      sync.Mutex
	conn    Conn
	handler Handler
	room    string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBridge creates a bridge for userID. Nothing is dialed until Connect.
func NewBridge(dialer Dialer, userID string, opts Options, log *logger.Logger) *Bridge {
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	return &Bridge{
		dialer:   dialer,
		userID:   userID,
		opts:     opts,
		logger:   log.Named("realtime"),
		presence: NewPresence(),
	}
}

// Connect dials the transport, announces the user and starts the read loop.
// ctx bounds the first dial only; the connection lives until Close.
func (b *Bridge) Connect(ctx context.Context, h Handler) error {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return errors.New("realtime bridge already connected")
	}
	b.handler = h
	b.mu.Unlock()

	conn, err := b.dialer.Dial(ctx, b.userID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.conn = conn
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	if err := b.established(runCtx, conn); err != nil {
		b.logger.Warn("announce failed", zap.Error(err))
	}

	go b.run(runCtx, conn)
	return nil
}

// established runs after every successful dial.
func (b *Bridge) established(ctx context.Context, conn Conn) error {
	metrics.RealtimeConnected.Set(1)
	if err := b.send(ctx, conn, model.EventUserConnected, b.userID); err != nil {
		return err
	}

	b.mu.Lock()
	room := b.room
	h := b.handler
	b.mu.Unlock()

	if room != "" {
		if err := b.send(ctx, conn, model.EventJoinConversation, room); err != nil {
			return err
		}
	}
	if h != nil {
		h.HandleConnectionState(ctx, true)
	}
	return nil
}

func (b *Bridge) run(ctx context.Context, conn Conn) {
	defer close(b.done)

	for {
		err := b.readLoop(ctx, conn)
		_ = conn.Close()
		metrics.RealtimeConnected.Set(0)

		b.mu.Lock()
		b.conn = nil
		h := b.handler
		b.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		b.logger.Warn("realtime connection lost", zap.Error(err))
		if h != nil {
			h.HandleConnectionState(ctx, false)
		}

		conn, err = b.redial(ctx)
		if err != nil {
			return
		}

		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		metrics.RealtimeReconnects.WithLabelValues("success").Inc()
		b.logger.Info("realtime reconnected")
		if err := b.established(ctx, conn); err != nil {
			b.logger.Warn("re-announce failed", zap.Error(err))
		}
	}
}

func (b *Bridge) redial(ctx context.Context) (Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.opts.ReconnectInitial
	bo.MaxInterval = b.opts.ReconnectMax
	bo.MaxElapsedTime = 0

	var conn Conn
	err := backoff.RetryNotify(func() error {
		c, err := b.dialer.Dial(ctx, b.userID)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		metrics.RealtimeReconnects.WithLabelValues("failed").Inc()
		b.logger.Debug("reconnect attempt failed",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)
	})
	return conn, err
}

func (b *Bridge) readLoop(ctx context.Context, conn Conn) error {
	for {
		env, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		metrics.RealtimeEvents.WithLabelValues("in", env.Event).Inc()
		b.dispatch(ctx, env)
	}
}

func (b *Bridge) dispatch(ctx context.Context, env Envelope) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return
	}

	switch env.Event {
	case model.EventNewMessage:
		var msg model.Message
		if err := env.Decode(&msg); err != nil {
			b.logger.Warn("dropping malformed message", zap.Error(err))
			return
		}
		if msg.ConversationID == "" {
			b.logger.Warn("dropping message without conversation id", zap.String("message_id", msg.ID))
			return
		}
		if msg.HiddenFor(b.userID) {
			return
		}
		msg.IsTemp = false
		h.HandleNewMessage(ctx, msg)

	case model.EventMessageDeleted:
		var evt model.MessageDeleted
		if err := env.Decode(&evt); err != nil {
			b.logger.Warn("dropping malformed deletion", zap.Error(err))
			return
		}
		if evt.MessageID == "" || evt.DeleteFor != model.DeleteForEveryone {
			return
		}
		h.HandleMessageDeleted(ctx, evt)

	case model.EventOnlineUsers:
		var ids []string
		if err := env.Decode(&ids); err != nil {
			b.logger.Warn("dropping malformed presence list", zap.Error(err))
			return
		}
		b.presence.Reset(ids)
		h.HandlePresence(ctx)

	case model.EventUserStatusChanged:
		var st model.UserStatus
		if err := env.Decode(&st); err != nil {
			b.logger.Warn("dropping malformed status", zap.Error(err))
			return
		}
		if st.UserID == "" {
			return
		}
		if b.presence.Set(st.UserID, st.IsOnline) {
			h.HandlePresence(ctx)
		}

	default:
		b.logger.Debug("ignoring event", zap.String("event", env.Event))
	}
}

// JoinConversation leaves the previously joined room, if any, and joins
// conversationID. While disconnected the room is remembered and joined on
// the next successful dial.
func (b *Bridge) JoinConversation(ctx context.Context, conversationID string) error {
	b.mu.Lock()
	prev := b.room
	if prev == conversationID {
		b.mu.Unlock()
		return nil
	}
	b.room = conversationID
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return nil
	}
	if prev != "" {
		if err := b.send(ctx, conn, model.EventLeaveConversation, prev); err != nil {
			return err
		}
	}
	if conversationID == "" {
		return nil
	}
	return b.send(ctx, conn, model.EventJoinConversation, conversationID)
}

// Room returns the currently joined conversation id.
func (b *Bridge) Room() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.room
}

// SendMessage broadcasts a server-confirmed message to the other participants.
func (b *Bridge) SendMessage(ctx context.Context, msg model.Message) error {
	return b.emit(ctx, model.EventSendMessage, msg)
}

// DeleteMessage broadcasts a deletion. Only deletions for everyone are sent.
func (b *Bridge) DeleteMessage(ctx context.Context, evt model.MessageDeleted) error {
	if evt.DeleteFor != model.DeleteForEveryone {
		return errors.New("only deletions for everyone are broadcast")
	}
	return b.emit(ctx, model.EventDeleteMessage, evt)
}

// Online reports whether userID is currently online.
func (b *Bridge) Online(userID string) bool {
	return b.presence.Online(userID)
}

// OnlineUsers lists the online user ids.
func (b *Bridge) OnlineUsers() []string {
	return b.presence.List()
}

// Connected reports whether a transport connection is up.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Close stops the read loop and closes the connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	conn := b.conn
	done := b.done
	b.cancel = nil
	b.conn = nil
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	<-done
	return err
}

func (b *Bridge) emit(ctx context.Context, event string, data any) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return b.send(ctx, conn, event, data)
}

func (b *Bridge) send(ctx context.Context, conn Conn, event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, env); err != nil {
		return err
	}
	metrics.RealtimeEvents.WithLabelValues("out", event).Inc()
	return nil
}
