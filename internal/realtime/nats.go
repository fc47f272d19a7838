package realtime

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	URL           string
	CAFile        string
	CertFile      string
	KeyFile       string
	Token         string
	SubjectPrefix string
}

// Subjects maps rooms, user inboxes and presence onto NATS subjects.
type Subjects struct {
	Prefix string
}

// Room is the subject of a conversation room.
func (s Subjects) Room(conversationID string) string {
	return s.Prefix + ".room." + conversationID
}

// User is the per-user inbox subject.
func (s Subjects) User(userID string) string {
	return s.Prefix + ".user." + userID
}

// Presence is the shared presence subject.
func (s Subjects) Presence() string {
	return s.Prefix + ".presence"
}

// NATSDialer carries realtime events over core NATS subjects instead of the
// backend websocket. Rooms are subscriptions; messages are delivered to the
// receiver's inbox.
type NATSDialer struct {
	Config NATSConfig
	Logger *logger.Logger
}

// Dial connects to NATS and subscribes to the user's inbox and presence.
func (d *NATSDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := d.Logger
	if log == nil {
		log = logger.Global()
	}
	prefix := d.Config.SubjectPrefix
	if prefix == "" {
		prefix = "chat"
	}

	c := &natsConn{
		userID:   userID,
		subjects: Subjects{Prefix: prefix},
		logger:   log,
		msgs:     make(chan *nats.Msg, 256),
		closed:   make(chan struct{}),
		rooms:    make(map[string]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("chatsync-" + userID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.markClosed()
		}),
	}

	if d.Config.CAFile != "" && d.Config.CertFile != "" && d.Config.KeyFile != "" {
		tlsConfig, err := createTLSConfig(d.Config.CAFile, d.Config.CertFile, d.Config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if d.Config.Token != "" {
		opts = append(opts, nats.Token(d.Config.Token))
	}

	nc, err := nats.Connect(d.Config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	for _, subject := range []string{c.subjects.User(userID), c.subjects.Presence()} {
		if _, err := nc.ChanSubscribe(subject, c.msgs); err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	return c, nil
}

type natsConn struct {
	nc       *nats.Conn
	userID   string
	subjects Subjects
	logger   *logger.Logger
	msgs     chan *nats.Msg

	closeOnce sync.Once
	closed    chan struct{}

	mu    sync.Mutex
	rooms map[string]*nats.Subscription
}

func (c *natsConn) Send(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	switch env.Event {
	case model.EventUserConnected:
		return c.publish(c.subjects.Presence(), model.EventUserStatusChanged,
			model.UserStatus{UserID: c.userID, IsOnline: true})

	case model.EventJoinConversation:
		var id string
		if err := env.Decode(&id); err != nil {
			return err
		}
		return c.join(id)

	case model.EventLeaveConversation:
		var id string
		if err := env.Decode(&id); err != nil {
			return err
		}
		return c.leave(id)

	case model.EventSendMessage:
		var msg model.Message
		if err := env.Decode(&msg); err != nil {
			return err
		}
		subject := c.subjects.Room(msg.ConversationID)
		if msg.ReceiverID != "" {
			subject = c.subjects.User(msg.ReceiverID)
		}
		return c.publishRaw(subject, Envelope{Event: model.EventNewMessage, Data: env.Data})

	case model.EventDeleteMessage:
		var evt model.MessageDeleted
		if err := env.Decode(&evt); err != nil {
			return err
		}
		if evt.ConversationID == "" {
			return fmt.Errorf("delete_message without conversation id")
		}
		return c.publishRaw(c.subjects.Room(evt.ConversationID), Envelope{Event: model.EventMessageDeleted, Data: env.Data})
	}

	return fmt.Errorf("unsupported outbound event %q", env.Event)
}

func (c *natsConn) Receive(ctx context.Context) (Envelope, error) {
	for {
		select {
		case msg := <-c.msgs:
			var env Envelope
			if err := json.Unmarshal(msg.Data, &env); err != nil {
				c.logger.Warn("dropping undecodable NATS message",
					zap.String("subject", msg.Subject),
					zap.Error(err),
				)
				continue
			}
			return env, nil
		case <-c.closed:
			return Envelope{}, ErrConnClosed
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

func (c *natsConn) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	if c.nc.IsConnected() {
		_ = c.publish(c.subjects.Presence(), model.EventUserStatusChanged,
			model.UserStatus{UserID: c.userID, IsOnline: false})
		_ = c.nc.Flush()
	}
	c.nc.Close()
	c.markClosed()
	return nil
}

func (c *natsConn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *natsConn) join(conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[conversationID]; ok {
		return nil
	}
	sub, err := c.nc.ChanSubscribe(c.subjects.Room(conversationID), c.msgs)
	if err != nil {
		return fmt.Errorf("failed to join room %s: %w", conversationID, err)
	}
	c.rooms[conversationID] = sub
	return nil
}

func (c *natsConn) leave(conversationID string) error {
	c.mu.Lock()
	sub, ok := c.rooms[conversationID]
	delete(c.rooms, conversationID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (c *natsConn) publish(subject, event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return c.publishRaw(subject, env)
}

func (c *natsConn) publishRaw(subject string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
