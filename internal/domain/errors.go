package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	// ErrPredictionFailed is the generic, user-presentable failure for a turn.
	// Both protocol-level and transport-level failures match it; the detailed
	// cause is logged, never surfaced to end users.
	ErrPredictionFailed = errors.New("an error occurred while predicting")

	// ErrTurnInFlight is returned when a second turn is started for a
	// conversation while a previous one is still unresolved.
	ErrTurnInFlight = errors.New("a turn is already in flight for this conversation")

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// MalformedTreeError indicates a structural violation in a message tree:
// a cyclic reference or an orphaned child pointer. It is recovered locally
// (the offending tree is rejected, or the broken chain truncated at display
// time) and never crosses into the presentation layer.
type MalformedTreeError struct {
	ConversationID string
	Message        string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed message tree for conversation %q: %s", e.ConversationID, e.Message)
}

// StreamingProtocolError indicates an ERROR status frame, an unrecognized
// status value, or a non-JSON/non-control frame on the streaming channel.
// Raw holds the offending payload for logging only.
type StreamingProtocolError struct {
	Message string
	Raw     string
}

func (e *StreamingProtocolError) Error() string {
	return "streaming protocol error: " + e.Message
}

// Is allows errors.Is() to match the generic prediction failure.
func (e *StreamingProtocolError) Is(target error) bool {
	return target == ErrPredictionFailed
}

// TransportError indicates a channel-level failure: dial failure, network
// drop, or abrupt close without a terminal status frame. Distinguished from
// StreamingProtocolError only in logs.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Err)
	}
	return "transport error: " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is allows errors.Is() to match the generic prediction failure.
func (e *TransportError) Is(target error) bool {
	return target == ErrPredictionFailed
}
