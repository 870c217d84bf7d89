// Package streaming drives one logical request/response turn over the
// chunked duplex transport: it serializes and chunk-transmits the turn
// payload under the START/BODY/END handshake, then reassembles the
// assistant's reply from server status frames, forwarding incremental text
// and agent tool-call events to the caller.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"parley/internal/chat/agent"
	"parley/internal/domain"
	"parley/internal/domain/models/chat"
)

// Messages holds the presentation strings the reconciler forwards while a
// turn is pending. The caller may localize them; defaults are used for any
// empty field.
type Messages struct {
	// WaitingSymbol is the transient cursor glyph appended after each
	// streamed delta and stripped before the next append.
	WaitingSymbol string

	// RetrievingKnowledge is the placeholder shown while the backend
	// fetches knowledge for a bot-augmented turn.
	RetrievingKnowledge string
}

// DefaultMessages are the unlocalized presentation strings.
var DefaultMessages = Messages{
	WaitingSymbol:       "▍",
	RetrievingKnowledge: "Retrieving knowledge...",
}

// PostInput carries one turn's outgoing request.
type PostInput struct {
	Request chat.PostMessageRequest

	// HasKnowledge selects the initial placeholder text: bots with a
	// knowledge base show the retrieval notice instead of the bare cursor.
	HasKnowledge bool
}

// Reconciler posts turns over channels produced by a Dialer and resolves
// each to the assistant's final text.
type Reconciler struct {
	dialer    Dialer
	tokens    TokenSource
	chunkSize int
	msgs      Messages
	logger    *slog.Logger
}

// NewReconciler creates a reconciler. chunkSize <= 0 selects the transport
// frame ceiling (32 KiB).
func NewReconciler(dialer Dialer, tokens TokenSource, chunkSize int, msgs Messages, logger *slog.Logger) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = chat.ChunkSizeLimit
	}
	if msgs.WaitingSymbol == "" {
		msgs.WaitingSymbol = DefaultMessages.WaitingSymbol
	}
	if msgs.RetrievingKnowledge == "" {
		msgs.RetrievingKnowledge = DefaultMessages.RetrievingKnowledge
	}
	return &Reconciler{
		dialer:    dialer,
		tokens:    tokens,
		chunkSize: chunkSize,
		msgs:      msgs,
		logger:    logger,
	}
}

// postPayload is the serialized turn request with the auth token merged in.
type postPayload struct {
	chat.PostMessageRequest
	Token string `json:"token"`
}

// Post runs one turn to completion and returns the accumulated assistant
// text. onText receives the full accumulated buffer after every update;
// onAgent receives tool-call notifications for the agent state machine.
// Either callback may be nil.
//
// Events are handled strictly in channel-delivery order. On a protocol or
// transport failure the returned error matches domain.ErrPredictionFailed
// and the raw cause is logged only; text already forwarded via onText is
// not rolled back. Cancelling ctx closes the channel and settles the turn
// with whatever text had accumulated.
func (r *Reconciler) Post(ctx context.Context, input PostInput, onText func(string), onAgent func(agent.Event)) (string, error) {
	if onText == nil {
		onText = func(string) {}
	}
	if onAgent == nil {
		onAgent = func(agent.Event) {}
	}

	if input.HasKnowledge {
		onText(r.msgs.RetrievingKnowledge)
	} else {
		onText(r.msgs.WaitingSymbol)
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return "", &domain.TransportError{Message: "fetch auth token", Err: err}
	}

	payload, err := json.Marshal(postPayload{PostMessageRequest: input.Request, Token: token})
	if err != nil {
		return "", fmt.Errorf("marshal turn payload: %w", err)
	}
	chunks := SplitPayload(string(payload), r.chunkSize)

	ch, err := r.dialer.Dial(ctx)
	if err != nil {
		return "", &domain.TransportError{Message: "open streaming channel", Err: err}
	}
	defer ch.Close()

	// Unblock a pending read when the caller abandons the turn.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ch.Close()
		case <-done:
		}
	}()

	if err := ch.WriteJSON(chat.StartFrame{Step: chat.StepStart, Token: token}); err != nil {
		return "", &domain.TransportError{Message: "send START frame", Err: err}
	}

	var completion string
	received := 0

	for {
		raw, err := ch.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				// Abandoned turn: settle with what accumulated.
				return strings.TrimSuffix(completion, r.msgs.WaitingSymbol), nil
			}
			r.logger.Error("streaming channel failed", "error", err)
			return "", &domain.TransportError{Message: "channel closed before STREAMING_END", Err: err}
		}

		switch {
		case raw == "" || raw == chat.ControlMessageSent || strings.HasPrefix(raw, chat.GatewayTimeoutPrefix):
			// Keep-alive noise from the gateway; explicitly not a timeout signal.
			continue

		case raw == chat.ControlSessionStarted:
			for i, part := range chunks {
				if err := ch.WriteJSON(chat.BodyFrame{Step: chat.StepBody, Index: i, Part: part}); err != nil {
					return "", &domain.TransportError{Message: "send BODY frame", Err: err}
				}
			}
			continue

		case raw == chat.ControlPartReceived:
			received++
			if received == len(chunks) {
				if err := ch.WriteJSON(chat.EndFrame{Step: chat.StepEnd}); err != nil {
					return "", &domain.TransportError{Message: "send END frame", Err: err}
				}
			}
			continue
		}

		var frame chat.StatusFrame
		if err := json.Unmarshal([]byte(raw), &frame); err != nil || frame.Status == "" {
			r.logger.Error("unrecognized streaming frame", "raw", raw)
			return "", &domain.StreamingProtocolError{Message: "unrecognized frame", Raw: raw}
		}

		switch frame.Status {
		case chat.StatusFetchingKnowledge:
			onText(r.msgs.RetrievingKnowledge)

		case chat.StatusAgentThinking:
			// Frame order, so multi-tool announcements render in the order
			// the agent invoked them.
			for _, toolUseID := range frame.Log.IDs {
				tool := frame.Log.Get(toolUseID)
				onAgent(agent.Event{
					Type:      agent.EventGoOn,
					ToolUseID: toolUseID,
					Name:      tool.Name,
					Input:     tool.Input,
				})
			}

		case chat.StatusAgentToolResult:
			if frame.Result != nil {
				onAgent(agent.Event{
					Type:      agent.EventToolResult,
					ToolUseID: frame.Result.ToolUseID,
					Status:    agent.ToolUseState(frame.Result.Status),
					Content:   frame.Result.Content,
				})
			}

		case chat.StatusStreaming:
			if frame.Completion != nil {
				// Strip the previous cursor glyph so it never lands mid-text,
				// then re-append it after the new delta.
				completion = strings.TrimSuffix(completion, r.msgs.WaitingSymbol)
				completion += *frame.Completion + r.msgs.WaitingSymbol
				onText(completion)
			}

		case chat.StatusStreamingEnd:
			onAgent(agent.Event{Type: agent.EventGoodbye})
			completion = strings.TrimSuffix(completion, r.msgs.WaitingSymbol)
			onText(completion)
			ch.Close()
			return completion, nil

		case chat.StatusError:
			r.logger.Error("server reported streaming error", "raw", raw)
			return "", &domain.StreamingProtocolError{Message: "server reported an error", Raw: raw}

		default:
			r.logger.Error("unrecognized streaming status", "status", frame.Status, "raw", raw)
			return "", &domain.StreamingProtocolError{Message: "unrecognized status " + frame.Status, Raw: raw}
		}
	}
}
