package relay

import (
	"context"
	"time"

	ws "nhooyr.io/websocket"
)

// Sender is the slice of a websocket connection the registry needs. The
// handler wraps real connections; tests substitute fakes.
type Sender interface {
	Write(ctx context.Context, p []byte) error
	Close(code ws.StatusCode, reason string) error
}

// Conn is one registered channel: a session-scoped handle around a live
// duplex stream.
type Conn struct {
	ID          string
	SessionID   string
	ConnectedAt time.Time
	sender      Sender
}

func NewConn(id, sessionID string, sender Sender) *Conn {
	return &Conn{
		ID:          id,
		SessionID:   sessionID,
		ConnectedAt: time.Now().UTC(),
		sender:      sender,
	}
}

func (c *Conn) Write(ctx context.Context, p []byte) error {
	return c.sender.Write(ctx, p)
}

func (c *Conn) close(code ws.StatusCode, reason string) {
	_ = c.sender.Close(code, reason)
}

// wsSender adapts a nhooyr connection to the Sender interface.
type wsSender struct{ c *ws.Conn }

func (s wsSender) Write(ctx context.Context, p []byte) error {
	return s.c.Write(ctx, ws.MessageText, p)
}

func (s wsSender) Close(code ws.StatusCode, reason string) error {
	return s.c.Close(code, reason)
}
