// Package ws implements the streaming channel contract over WebSocket.
package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"parley/internal/chat/streaming"
)

// Dialer opens WebSocket channels against a fixed endpoint.
type Dialer struct {
	endpoint string
	dialer   *websocket.Dialer
}

// NewDialer creates a dialer for the given ws:// or wss:// endpoint.
func NewDialer(endpoint string) *Dialer {
	return &Dialer{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
	}
}

// Dial opens a new channel. The context bounds the handshake only; the
// reconciler closes the channel to abandon an in-flight turn.
func (d *Dialer) Dial(ctx context.Context) (streaming.Channel, error) {
	conn, _, err := d.dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.endpoint, err)
	}
	return &channel{conn: conn}, nil
}

// channel adapts a websocket connection to the streaming.Channel contract.
// Writes are serialized; Close is idempotent so the reconciler can close
// from its cancellation watcher while a read is pending.
type channel struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *channel) ReadMessage() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *channel) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
