package chat

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types
const (
	ContentTypeText       = "text"
	ContentTypeImage      = "image"
	ContentTypeAttachment = "attachment"
	ContentTypeToolUse    = "toolUse"
	ContentTypeToolResult = "toolResult"
)

// SystemMessageID is the id of the synthetic root node of a message tree.
// It is stripped from linearized output and accepted as a parent reference
// meaning "insert as root".
const SystemMessageID = "system"

// ContentBlock is one element of a message's ordered content sequence.
// Text, image and attachment blocks carry Body; tool blocks carry the
// tool-specific fields instead.
type ContentBlock struct {
	ContentType string         `json:"contentType"`
	Body        string         `json:"body,omitempty"`
	MediaType   string         `json:"mediaType,omitempty"` // image/attachment blocks
	FileName    string         `json:"fileName,omitempty"`  // attachment blocks
	ToolUseID   string         `json:"toolUseId,omitempty"`
	ToolName    string         `json:"toolName,omitempty"`   // toolUse blocks
	ToolInput   map[string]any `json:"toolInput,omitempty"`  // toolUse blocks
	ToolStatus  string         `json:"toolStatus,omitempty"` // toolResult blocks: "success" or "error"
}

// Feedback is a user rating attached to an assistant message.
type Feedback struct {
	ThumbsUp bool   `json:"thumbsUp"`
	Category string `json:"category"`
	Comment  string `json:"comment"`
}

// UsedChunk is a retrieval citation used to ground a knowledge-augmented answer.
type UsedChunk struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Source      string `json:"source"`
	Rank        int    `json:"rank"`
}

// Message is one node of a conversation tree.
// Parent is nil only for the root; Children preserves branch-creation order.
type Message struct {
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	Parent     *string        `json:"parent"`
	Children   []string       `json:"children"`
	Feedback   *Feedback      `json:"feedback"`
	UsedChunks []UsedChunk    `json:"usedChunks,omitempty"`
}

// MessageMap is a whole conversation tree as a flat id -> node map.
// The tree shape lives in the Parent/Children pointers; a flat arena keeps
// deletion and branch moves cheap.
type MessageMap map[string]Message

// DisplayMessage is one element of a linearized root-to-leaf view.
// Sibling lists the ids sharing this node's position (its parent's children,
// or a singleton of itself for the root).
type DisplayMessage struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	Parent     *string        `json:"parent"`
	Children   []string       `json:"children"`
	Sibling    []string       `json:"sibling"`
	Feedback   *Feedback      `json:"feedback"`
	UsedChunks []UsedChunk    `json:"usedChunks,omitempty"`
}

// FirstTextBody returns the body of the first text content block, or "".
func (m Message) FirstTextBody() string {
	for _, b := range m.Content {
		if b.ContentType == ContentTypeText {
			return b.Body
		}
	}
	return ""
}

// FirstTextBody returns the body of the first text content block, or "".
func (m DisplayMessage) FirstTextBody() string {
	for _, b := range m.Content {
		if b.ContentType == ContentTypeText {
			return b.Body
		}
	}
	return ""
}
