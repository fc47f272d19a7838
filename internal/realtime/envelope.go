// Package realtime implements the duplex event channel between the client
// session and the marketplace backend.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when emitting without a live connection.
	ErrNotConnected = errors.New("realtime channel not connected")
	// ErrConnClosed is returned by a Conn after Close or a transport failure.
	ErrConnClosed = errors.New("realtime connection closed")
)

// Envelope is the wire frame of every realtime event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data as the payload of event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Conn is one established transport connection. Send must be safe for
// concurrent use; Receive is called from a single reader.
type Conn interface {
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

// Dialer opens a Conn on behalf of userID.
type Dialer interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}
