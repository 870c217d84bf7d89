package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"parley/internal/domain/models/chat"
)

// GetConversation fetches the canonical message tree and metadata for a
// conversation. This is the authoritative source of truth after a turn.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversation/"+url.PathEscape(conversationID), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations fetches the conversation list, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]chat.ConversationMeta, error) {
	var list []chat.ConversationMeta
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteConversation removes one conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/conversation/"+url.PathEscape(conversationID), nil, nil)
}

// DeleteAllConversations clears the user's conversation history.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/conversations", nil, nil)
}

type proposedTitleResponse struct {
	Title string `json:"title"`
}

type updateTitleRequest struct {
	NewTitle string `json:"newTitle"`
}

// GenerateTitle asks the backend to propose a title for a conversation and
// stores it. Fired out-of-band after the first successful turn of a new
// conversation.
func (c *Client) GenerateTitle(ctx context.Context, conversationID string) error {
	path := "/conversation/" + url.PathEscape(conversationID)

	var proposed proposedTitleResponse
	if err := c.do(ctx, http.MethodGet, path+"/proposed-title", nil, &proposed); err != nil {
		return fmt.Errorf("propose title: %w", err)
	}
	if err := c.do(ctx, http.MethodPatch, path+"/title", updateTitleRequest{NewTitle: proposed.Title}, nil); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}
