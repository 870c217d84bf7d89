package api

import (
	"context"
	"net/http"
	"net/url"

	"parley/internal/domain/models/chat"
)

// GetBot fetches read-only bot metadata: title, description, sync status,
// knowledge flag, and parameter defaults.
func (c *Client) GetBot(ctx context.Context, botID string) (*chat.BotMeta, error) {
	var bot chat.BotMeta
	if err := c.do(ctx, http.MethodGet, "/bot/"+url.PathEscape(botID), nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}
