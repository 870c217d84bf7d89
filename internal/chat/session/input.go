package session

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/domain/models/chat"
)

// Attachment is a file whose extracted text rides along with the turn.
type Attachment struct {
	FileName         string
	MediaType        string
	ExtractedContent string
}

// Image is a base64-encoded image attached to the turn.
type Image struct {
	MediaType  string
	Base64Body string
}

// PostChatInput is the caller-facing input of one turn.
type PostChatInput struct {
	Content     string
	Attachments []Attachment
	Images      []Image
	BotID       *string

	// BotHasKnowledge selects the "retrieving knowledge" placeholder while
	// the backend searches the bot's knowledge base.
	BotHasKnowledge bool
}

// ContinueInput addresses a resumed generation.
type ContinueInput struct {
	BotID *string
}

func (in PostChatInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Attachments, validation.Each(validation.By(validateAttachment))),
		validation.Field(&in.Images, validation.Each(validation.By(validateImage))),
	)
}

func validateAttachment(value interface{}) error {
	a, ok := value.(Attachment)
	if !ok {
		return validation.NewError("validation_attachment", "invalid attachment type")
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.FileName, validation.Required),
		validation.Field(&a.ExtractedContent, validation.Required),
	)
}

func validateImage(value interface{}) error {
	img, ok := value.(Image)
	if !ok {
		return validation.NewError("validation_image", "invalid image type")
	}
	return validation.ValidateStruct(&img,
		validation.Field(&img.MediaType, validation.Required),
		validation.Field(&img.Base64Body, validation.Required),
	)
}

// contentBlocks builds the outgoing content sequence: attachments and
// images first, the main text last.
func (in PostChatInput) contentBlocks() []chat.ContentBlock {
	blocks := make([]chat.ContentBlock, 0, len(in.Attachments)+len(in.Images)+1)
	for _, a := range in.Attachments {
		blocks = append(blocks, chat.ContentBlock{
			ContentType: chat.ContentTypeAttachment,
			Body:        a.ExtractedContent,
			MediaType:   a.MediaType,
			FileName:    a.FileName,
		})
	}
	for _, img := range in.Images {
		blocks = append(blocks, chat.ContentBlock{
			ContentType: chat.ContentTypeImage,
			Body:        img.Base64Body,
			MediaType:   img.MediaType,
		})
	}
	blocks = append(blocks, chat.ContentBlock{
		ContentType: chat.ContentTypeText,
		Body:        in.Content,
	})
	return blocks
}
