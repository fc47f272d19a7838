// Package api is the REST client for the marketplace messaging backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/tracing"
)

const maxResponseBytes = 10 << 20

// ErrServerRejected is returned when the backend answers success:false.
var ErrServerRejected = errors.New("backend rejected the request")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Code)
}

// Config holds client settings.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Client implements chatsync.Backend over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	// uploads has no overall timeout; the caller's context bounds streamed bodies.
	uploads *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *logger.Logger
}

var _ chatsync.Backend = (*Client)(nil)

// New creates a backend client.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	transport := http.DefaultTransport
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		uploads: &http.Client{Transport: transport},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		tracer:  tracing.Tracer("chatsync/api"),
		logger:  log.Named("api"),
	}
}

// ListConversations fetches the user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := c.do(ctx, "list_conversations", http.MethodGet, "/conversations", nil, "", &convs, "conversations", "data"); err != nil {
		return nil, err
	}
	return convs, nil
}

// UnreadCount fetches one conversation's unread count.
func (c *Client) UnreadCount(ctx context.Context, conversationID string) (int, error) {
	var n int
	path := "/conversations/" + url.PathEscape(conversationID) + "/unread-count"
	if err := c.do(ctx, "unread_count", http.MethodGet, path, nil, "", &n, "count", "unreadCount", "data"); err != nil {
		return 0, err
	}
	return n, nil
}

// UnreadCounts fetches unread counts for many conversations in one request.
func (c *Client) UnreadCounts(ctx context.Context, conversationIDs []string) (map[string]int, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(conversationIDs, ","))
	counts := map[string]int{}
	if err := c.do(ctx, "unread_counts", http.MethodGet, "/conversations/unread-counts?"+q.Encode(), nil, "", &counts, "counts", "data"); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListMessages fetches one page of a conversation, newest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page, limit int) (*model.MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	path := "/messages/" + url.PathEscape(conversationID) + "?" + q.Encode()

	var p model.MessagePage
	if err := c.do(ctx, "list_messages", http.MethodGet, path, nil, "", &p, "data"); err != nil {
		return nil, err
	}
	return &p, nil
}

// SendMessage persists a text message.
func (c *Client) SendMessage(ctx context.Context, req *model.SendMessageRequest) (*model.Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var msg model.Message
	if err := c.do(ctx, "send_message", http.MethodPost, "/messages", bytes.NewReader(body), "application/json", &msg, "message", "data"); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead acknowledges one message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, "mark_read", http.MethodPut, "/messages/mark-read/"+url.PathEscape(messageID), nil, "", nil)
}

// MarkConversationRead acknowledges every message of a conversation.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, "mark_conversation_read", http.MethodPut, "/messages/mark-conversation-read/"+url.PathEscape(conversationID), nil, "", nil)
}

// DeleteMessage deletes a message for the given scope.
func (c *Client) DeleteMessage(ctx context.Context, messageID string, scope model.DeleteScope) error {
	path := "/messages/message/" + url.PathEscape(messageID) + "?deleteFor=" + url.QueryEscape(string(scope))
	return c.do(ctx, "delete_message", http.MethodDelete, path, nil, "", nil)
}

// DeleteConversation deletes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, "delete_conversation", http.MethodDelete, "/messages/conversation/"+url.PathEscape(conversationID), nil, "", nil)
}

// do performs one request. out receives the payload found under the first
// present key of keys, or the whole body.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any, keys ...string) error {
	return c.doWith(ctx, c.http, op, method, path, body, contentType, out, keys...)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, op, method, path string, body io.Reader, contentType string, out any, keys ...string) (err error) {
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.op", op),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	metrics.RecordBackendCall(op, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("backend error response",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%s: %w", op, &StatusError{Code: resp.StatusCode, Message: ackMessage(data)})
	}
	if err := checkAck(data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload(data, keys...), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// checkAck maps a success:false body to ErrServerRejected.
func checkAck(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var ack model.Ack
	if err := json.Unmarshal(trimmed, &ack); err != nil {
		return nil
	}
	if ack.Success != nil && !*ack.Success {
		if ack.Message != "" {
			return fmt.Errorf("%w: %s", ErrServerRejected, ack.Message)
		}
		return ErrServerRejected
	}
	return nil
}

func ackMessage(data []byte) string {
	var ack model.Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		return ""
	}
	return ack.Message
}

// payload unwraps {"<key>": value} envelopes. Bodies that are not objects,
// or carry none of keys with a non-string value, are returned whole.
func payload(data []byte, keys ...string) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || len(keys) == 0 {
		return trimmed
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, k := range keys {
		v := bytes.TrimSpace(obj[k])
		if len(v) == 0 || v[0] == '"' || bytes.Equal(v, []byte("null")) {
			continue
		}
		return v
	}
	return trimmed
}
