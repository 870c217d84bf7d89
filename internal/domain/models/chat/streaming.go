package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Client -> server handshake steps
const (
	StepStart = "START"
	StepBody  = "BODY"
	StepEnd   = "END"
)

// Server -> client status values
const (
	StatusFetchingKnowledge = "FETCHING_KNOWLEDGE"
	StatusAgentThinking     = "AGENT_THINKING"
	StatusAgentToolResult   = "AGENT_TOOL_RESULT"
	StatusStreaming         = "STREAMING"
	StatusStreamingEnd      = "STREAMING_END"
	StatusError             = "ERROR"
)

// Server -> client control strings (bare text frames, not JSON)
const (
	ControlSessionStarted = "Session started."
	ControlPartReceived   = "Message part received."
	ControlMessageSent    = "Message sent."

	// GatewayTimeoutPrefix marks keep-alive timeout notices from the API
	// gateway. They are ignored, not treated as a timeout signal.
	GatewayTimeoutPrefix = `{"message": "Endpoint request timed out",`
)

// ChunkSizeLimit is the hard per-frame ceiling of the transport, in bytes of
// serialized payload. BODY frame parts must stay under it.
const ChunkSizeLimit = 32 * 1024

// StartFrame opens the handshake with the auth token.
type StartFrame struct {
	Step  string `json:"step"`
	Token string `json:"token"`
}

// BodyFrame carries one chunk of the serialized turn payload.
type BodyFrame struct {
	Step  string `json:"step"`
	Index int    `json:"index"`
	Part  string `json:"part"`
}

// EndFrame closes the handshake once every chunk has been acknowledged.
type EndFrame struct {
	Step string `json:"step"`
}

// ToolInvocation is one entry of an AGENT_THINKING status frame's log,
// keyed by toolUseId.
type ToolInvocation struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolLog holds the tool invocations announced by one AGENT_THINKING frame.
// IDs preserves the frame's own key order; a plain map would randomize it on
// every decode.
type ToolLog struct {
	IDs   []string
	Tools map[string]ToolInvocation
}

// Get returns the invocation for a tool use id.
func (l ToolLog) Get(toolUseID string) ToolInvocation {
	return l.Tools[toolUseID]
}

// UnmarshalJSON decodes the log object token by token so the key order of
// the frame survives.
func (l *ToolLog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil { // JSON null
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tool log must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("tool log key must be a string, got %v", keyTok)
		}
		var inv ToolInvocation
		if err := dec.Decode(&inv); err != nil {
			return err
		}
		if l.Tools == nil {
			l.Tools = make(map[string]ToolInvocation)
		}
		if _, seen := l.Tools[key]; !seen {
			l.IDs = append(l.IDs, key)
		}
		l.Tools[key] = inv
	}
	return nil
}

// ToolResultPayload is the result field of an AGENT_TOOL_RESULT frame.
type ToolResultPayload struct {
	ToolUseID string `json:"toolUseId"`
	Status    string `json:"status"` // "success" or "error"
	Content   string `json:"content"`
}

// StatusFrame is a server -> client JSON status frame. Only the fields of
// the matching status are populated. Completion is a pointer so an empty
// STREAMING delta is distinguishable from an absent one.
type StatusFrame struct {
	Status     string             `json:"status"`
	Completion *string            `json:"completion,omitempty"`
	Log        ToolLog            `json:"log,omitempty"`
	Result     *ToolResultPayload `json:"result,omitempty"`
}
