package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

// WebSocketDialer connects to the backend's websocket endpoint.
type WebSocketDialer struct {
	URL    string
	Token  string
	Logger *logger.Logger
}

// Dial opens a websocket for userID, authenticating with the session token.
func (d *WebSocketDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime channel: %w", err)
	}

	log := d.Logger
	if log == nil {
		log = logger.Global()
	}
	return newWSConn(ws, log), nil
}

type wsConn struct {
	ws       *websocket.Conn
	logger   *logger.Logger
	send     chan []byte
	incoming chan Envelope
	done     chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func newWSConn(ws *websocket.Conn, log *logger.Logger) *wsConn {
	c := &wsConn{
		ws:       ws,
		logger:   log,
		send:     make(chan []byte, sendBuffer),
		incoming: make(chan Envelope, sendBuffer),
		done:     make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *wsConn) Send(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) Receive(ctx context.Context) (Envelope, error) {
	select {
	case env, ok := <-c.incoming:
		if !ok {
			return Envelope{}, c.failure()
		}
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *wsConn) failure() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return fmt.Errorf("%w: %v", ErrConnClosed, c.err)
	}
	return ErrConnClosed
}

func (c *wsConn) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			c.fail(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}

		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.fail(err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}
		case <-c.done:
			return
		}
	}
}
