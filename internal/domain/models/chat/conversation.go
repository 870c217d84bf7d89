package chat

import "time"

// Conversation is the canonical server-side state of one conversation.
type Conversation struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	CreateTime     time.Time  `json:"createTime"`
	MessageMap     MessageMap `json:"messageMap"`
	LastMessageID  string     `json:"lastMessageId"`
	ShouldContinue bool       `json:"shouldContinue"`
	BotID          *string    `json:"botId,omitempty"`
}

// ConversationMeta is one entry of the conversation list.
type ConversationMeta struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreateTime time.Time `json:"createTime"`
	Model      string    `json:"model"`
	BotID      *string   `json:"botId,omitempty"`
}

// MessageInput is the outgoing message of a turn.
type MessageInput struct {
	Role            string         `json:"role"`
	Content         []ContentBlock `json:"content"`
	Model           string         `json:"model"`
	ParentMessageID *string        `json:"parentMessageId"`
}

// PostMessageRequest is the serialized payload of one turn. It is chunked
// by the streaming reconciler before transmission.
type PostMessageRequest struct {
	ConversationID   string       `json:"conversationId,omitempty"`
	Message          MessageInput `json:"message"`
	BotID            *string      `json:"botId,omitempty"`
	ContinueGenerate bool         `json:"continueGenerate,omitempty"`
}

// PutFeedbackRequest is the payload of the feedback collaborator API.
type PutFeedbackRequest struct {
	ThumbsUp bool   `json:"thumbsUp"`
	Category string `json:"category"`
	Comment  string `json:"comment"`
}

// RelatedDocument is a citation chunk returned by the related-documents
// collaborator API for a knowledge-augmented turn.
type RelatedDocument struct {
	Content     string `json:"chunkBody"`
	ContentType string `json:"contentType"`
	SourceLink  string `json:"sourceLink"`
	Rank        int    `json:"rank"`
}

// RelatedDocumentsRequest addresses one related-documents poll.
type RelatedDocumentsRequest struct {
	BotID          string       `json:"botId"`
	ConversationID string       `json:"conversationId"`
	Message        MessageInput `json:"message"`
}
