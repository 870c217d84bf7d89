package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/domain"
	"parley/internal/domain/models/chat"
)

// PutFeedback records a user rating on a message. Feedback is never applied
// optimistically; callers re-fetch canonical state after it succeeds.
func (c *Client) PutFeedback(ctx context.Context, conversationID, messageID string, feedback chat.PutFeedbackRequest) error {
	if err := validateFeedback(feedback); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	path := "/conversation/" + url.PathEscape(conversationID) + "/" + url.PathEscape(messageID) + "/feedback"
	return c.do(ctx, http.MethodPut, path, feedback, nil)
}

// validateFeedback requires a category on thumbs-down ratings so the
// backend can aggregate complaint types.
func validateFeedback(feedback chat.PutFeedbackRequest) error {
	return validation.ValidateStruct(&feedback,
		validation.Field(&feedback.Category,
			validation.Required.When(!feedback.ThumbsUp).Error("category is required for thumbs-down feedback"),
			validation.Length(0, 100),
		),
		validation.Field(&feedback.Comment, validation.Length(0, 2000)),
	)
}
