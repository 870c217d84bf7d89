package api

import (
	"context"
	"net/http"

	"parley/internal/domain/models/chat"
)

// GetRelatedDocuments fetches the citation chunks used to ground a
// knowledge-augmented answer. Polled once per turn, independently of the
// streaming channel.
func (c *Client) GetRelatedDocuments(ctx context.Context, req chat.RelatedDocumentsRequest) ([]chat.RelatedDocument, error) {
	var docs []chat.RelatedDocument
	if err := c.do(ctx, http.MethodPost, "/conversation/related-documents", req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
