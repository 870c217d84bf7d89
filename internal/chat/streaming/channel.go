package streaming

import "context"

// Channel is the duplex, message-oriented transport one turn runs over.
// Frames are ordered; ReadMessage blocks until the next frame or a channel
// failure. Close is safe to call more than once and unblocks a pending
// ReadMessage.
type Channel interface {
	// ReadMessage returns the next text frame from the server.
	ReadMessage() (string, error)

	// WriteJSON serializes v and sends it as one text frame.
	WriteJSON(v any) error

	// Close tears the channel down.
	Close() error
}

// Dialer opens a fresh channel for a turn.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// TokenSource supplies the auth token carried by the START frame and
// embedded in the serialized turn payload.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
