// Package session orchestrates one user's chat session: it owns the
// message-tree store, drives the streaming reconciler and the agent
// state machine, and reconciles the optimistic local view with canonical
// conversation state from the collaborator APIs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"parley/internal/chat/agent"
	"parley/internal/chat/streaming"
	"parley/internal/chat/tree"
	"parley/internal/domain"
	"parley/internal/domain/models/chat"
)

// Transient ids for the optimistic placeholder pair of an in-flight turn.
// They are replaced by server-assigned ids once canonical state is
// re-fetched.
const (
	NewUserMessageID      = "new-message"
	NewAssistantMessageID = "new-message-assistant"
)

// Poster runs one turn over the streaming transport.
type Poster interface {
	Post(ctx context.Context, input streaming.PostInput, onText func(string), onAgent func(agent.Event)) (string, error)
}

// ConversationAPI is the conversation read/write collaborator contract.
type ConversationAPI interface {
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	ListConversations(ctx context.Context) ([]chat.ConversationMeta, error)
	GenerateTitle(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// FeedbackAPI is the feedback collaborator contract.
type FeedbackAPI interface {
	PutFeedback(ctx context.Context, conversationID, messageID string, feedback chat.PutFeedbackRequest) error
}

// RelatedDocumentsAPI is the citation-chunk collaborator contract.
type RelatedDocumentsAPI interface {
	GetRelatedDocuments(ctx context.Context, req chat.RelatedDocumentsRequest) ([]chat.RelatedDocument, error)
}

// Controller is the session orchestrator handed to the presentation layer.
// It owns its store and machine explicitly; nothing here is a package-level
// singleton.
type Controller struct {
	store    *tree.Store
	poster   Poster
	convs    ConversationAPI
	feedback FeedbackAPI
	related  RelatedDocumentsAPI
	machine  *agent.Machine
	logger   *slog.Logger

	defaultModel string
	onUpdate     func()

	mu               sync.Mutex
	conversationID   string
	currentMessageID string
	posting          bool
	shouldContinue   bool
	relatedDocs      map[string][]chat.RelatedDocument
	conversations    []chat.ConversationMeta

	// pollSeq ties each citation poll to the turn that spawned it. It is
	// bumped when a turn settles, so a poll landing late cannot park its
	// result under the placeholder id for a later refresh to misattribute.
	pollSeq uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithRelatedDocumentsAPI enables the once-per-turn citation poll for
// knowledge-augmented bots.
func WithRelatedDocumentsAPI(api RelatedDocumentsAPI) Option {
	return func(c *Controller) { c.related = api }
}

// WithUpdateHandler registers a callback fired after every state change the
// presentation layer should re-render for.
func WithUpdateHandler(fn func()) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// NewController creates a session controller.
func NewController(
	store *tree.Store,
	poster Poster,
	convs ConversationAPI,
	feedback FeedbackAPI,
	machine *agent.Machine,
	defaultModel string,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		store:        store,
		poster:       poster,
		convs:        convs,
		feedback:     feedback,
		machine:      machine,
		defaultModel: defaultModel,
		logger:       logger,
		relatedDocs:  make(map[string][]chat.RelatedDocument),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewChat clears the active conversation and resets the transient tree.
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.conversationID = ""
	c.currentMessageID = ""
	c.shouldContinue = false
	c.mu.Unlock()

	// An empty tree is always structurally valid.
	_ = c.store.SetTree("", chat.MessageMap{})
	c.notify()
}

// LoadConversation makes a conversation active and pulls its canonical
// state. An empty id is equivalent to NewChat.
func (c *Controller) LoadConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		c.NewChat()
		return nil
	}

	c.mu.Lock()
	c.conversationID = conversationID
	c.mu.Unlock()

	conv, err := c.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	c.applyCanonical(conv)
	return nil
}

// PostChat runs one turn: it pushes the optimistic user/placeholder pair,
// drives the reconciler, and finalizes or rolls back the tree.
//
// At most one turn may be in flight per controller; a concurrent call is
// rejected with domain.ErrTurnInFlight rather than queued. The call blocks
// until the turn settles; run it off the UI loop.
func (c *Controller) PostChat(ctx context.Context, input PostChatInput) error {
	if err := input.validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	c.mu.Lock()
	if c.posting {
		c.mu.Unlock()
		return domain.ErrTurnInFlight
	}
	c.posting = true
	conversationID := c.conversationID
	currentMessageID := c.currentMessageID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.posting = false
		c.mu.Unlock()
		c.notify()
	}()

	isNew := conversationID == ""
	model := c.defaultModel
	if !isNew {
		model = c.PostedModel()
	}

	// Parent of the new user message: the synthetic root for a fresh
	// conversation, otherwise the tip of the current branch.
	parentID := chat.SystemMessageID
	if !isNew {
		if msgs := c.store.Linearize(conversationID, currentMessageID); len(msgs) > 0 {
			parentID = msgs[len(msgs)-1].ID
		}
	}

	blocks := input.contentBlocks()

	// Optimistic update: the turn is visible before the round trip starts.
	c.store.PushMessage(conversationID, &parentID, NewUserMessageID, chat.Message{
		Role:    chat.RoleUser,
		Content: blocks,
		Model:   model,
	})
	userID := NewUserMessageID
	c.store.PushMessage(conversationID, &userID, NewAssistantMessageID, chat.Message{
		Role:    chat.RoleAssistant,
		Content: []chat.ContentBlock{{ContentType: chat.ContentTypeText, Body: ""}},
		Model:   model,
	})
	c.notify()

	c.machine.Dispatch(agent.Event{Type: agent.EventWakeup})

	targetID := conversationID
	if isNew {
		targetID = uuid.NewString()
	}
	request := chat.PostMessageRequest{
		ConversationID: targetID,
		Message: chat.MessageInput{
			Role:            chat.RoleUser,
			Content:         blocks,
			Model:           model,
			ParentMessageID: &parentID,
		},
		BotID: input.BotID,
	}

	if input.BotID != nil && c.related != nil {
		c.mu.Lock()
		c.pollSeq++
		seq := c.pollSeq
		c.mu.Unlock()
		go c.pollRelatedDocuments(ctx, seq, *input.BotID, targetID, request.Message)
	}

	_, err := c.poster.Post(ctx,
		streaming.PostInput{Request: request, HasKnowledge: input.BotHasKnowledge},
		func(text string) {
			c.store.EditMessageText(conversationID, NewAssistantMessageID, text)
			c.notify()
		},
		c.machine.Dispatch,
	)
	if err != nil {
		// Keep the user message as the error-terminal leaf so the caller
		// can render a retry affordance; drop only the placeholder.
		c.logger.Error("turn failed",
			"conversation_id", targetID,
			"error", err,
		)
		c.store.RemoveMessage(conversationID, NewAssistantMessageID)

		// The turn is settled: retire its citation poll and drop anything it
		// already parked under the placeholder id.
		c.mu.Lock()
		c.pollSeq++
		delete(c.relatedDocs, NewAssistantMessageID)
		c.mu.Unlock()
		return fmt.Errorf("post chat: %w", err)
	}

	if isNew {
		// Copy the transient tree so the view stays consistent while the
		// backend-assigned id becomes authoritative.
		c.store.CopyTree(conversationID, targetID)
		c.mu.Lock()
		c.conversationID = targetID
		c.mu.Unlock()

		if err := c.convs.GenerateTitle(ctx, targetID); err != nil {
			c.logger.Warn("title generation failed", "conversation_id", targetID, "error", err)
		}
		if err := c.SyncConversations(ctx); err != nil {
			c.logger.Warn("conversation list sync failed", "error", err)
		}
	}

	c.refreshCanonical(ctx, targetID)
	return nil
}

// ContinueGenerate resumes generation of the last assistant message after a
// token-ceiling stop: the reply streams into the existing message instead
// of a new placeholder. Subject to the same in-flight rule as PostChat.
func (c *Controller) ContinueGenerate(ctx context.Context, input ContinueInput) error {
	c.mu.Lock()
	if c.posting {
		c.mu.Unlock()
		return domain.ErrTurnInFlight
	}
	c.posting = true
	conversationID := c.conversationID
	currentMessageID := c.currentMessageID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.posting = false
		c.mu.Unlock()
		c.notify()
	}()

	if conversationID == "" {
		return fmt.Errorf("%w: no active conversation to continue", domain.ErrValidation)
	}
	msgs := c.store.Linearize(conversationID, currentMessageID)
	if len(msgs) == 0 {
		return fmt.Errorf("%w: conversation has no messages to continue", domain.ErrValidation)
	}
	last := msgs[len(msgs)-1]
	base := last.FirstTextBody()

	request := chat.PostMessageRequest{
		ConversationID: conversationID,
		Message: chat.MessageInput{
			Role:            chat.RoleUser,
			Content:         []chat.ContentBlock{},
			Model:           c.PostedModel(),
			ParentMessageID: &last.ID,
		},
		BotID:            input.BotID,
		ContinueGenerate: true,
	}

	_, err := c.poster.Post(ctx,
		streaming.PostInput{Request: request},
		func(text string) {
			c.store.EditMessageText(conversationID, last.ID, base+text)
			c.notify()
		},
		c.machine.Dispatch,
	)
	if err != nil {
		// The partial text already shown stays; nothing to roll back.
		c.logger.Error("continue generation failed", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("continue generate: %w", err)
	}

	c.refreshCanonical(ctx, conversationID)
	return nil
}

// GiveFeedback records a rating on a message and re-fetches canonical
// state. Feedback is never applied optimistically; it must be durably
// recorded server-side first.
func (c *Controller) GiveFeedback(ctx context.Context, messageID string, feedback chat.PutFeedbackRequest) error {
	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()

	if err := c.feedback.PutFeedback(ctx, conversationID, messageID, feedback); err != nil {
		return fmt.Errorf("put feedback: %w", err)
	}
	c.refreshCanonical(ctx, conversationID)
	return nil
}

// Messages returns the linearized view of the active conversation anchored
// at the current message id. Branch navigation happens by moving that
// anchor with SetCurrentMessageID.
func (c *Controller) Messages() []chat.DisplayMessage {
	c.mu.Lock()
	conversationID := c.conversationID
	currentMessageID := c.currentMessageID
	c.mu.Unlock()
	return c.store.Linearize(conversationID, currentMessageID)
}

// SetCurrentMessageID moves the linearization anchor, selecting a branch.
func (c *Controller) SetCurrentMessageID(messageID string) {
	c.mu.Lock()
	c.currentMessageID = messageID
	c.mu.Unlock()
	c.notify()
}

// HasError reports whether the last turn failed: a trailing user message
// means the assistant placeholder was rolled back.
func (c *Controller) HasError() bool {
	msgs := c.Messages()
	return len(msgs) > 0 && msgs[len(msgs)-1].Role == chat.RoleUser
}

// Posting reports whether a turn is in flight.
func (c *Controller) Posting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posting
}

// ShouldContinue reports whether the last reply stopped at the token
// ceiling and can be resumed with ContinueGenerate.
func (c *Controller) ShouldContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldContinue
}

// ConversationID returns the active conversation id ("" for a new chat).
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// PostedModel returns the model of the active conversation: the synthetic
// root's model once canonical state exists, the optimistic placeholder's
// model for a conversation still in its first turn, or the default.
func (c *Controller) PostedModel() string {
	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()

	if system, ok := c.store.Message(conversationID, chat.SystemMessageID); ok && system.Model != "" {
		return system.Model
	}
	if placeholder, ok := c.store.Message("", NewAssistantMessageID); ok && placeholder.Model != "" {
		return placeholder.Model
	}
	return c.defaultModel
}

// AgentState returns the live agent machine state.
func (c *Controller) AgentState() agent.State {
	return c.machine.State()
}

// AgentToolCalls returns the live tool-call map of the in-flight turn.
func (c *Controller) AgentToolCalls() map[string]agent.ToolCall {
	return c.machine.ToolCalls()
}

// RelatedDocuments returns the citation chunks polled for a message.
func (c *Controller) RelatedDocuments(messageID string) []chat.RelatedDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relatedDocs[messageID]
}

// Conversations returns the last synced conversation list.
func (c *Controller) Conversations() []chat.ConversationMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversations
}

// SyncConversations refreshes the cached conversation list.
func (c *Controller) SyncConversations(ctx context.Context) error {
	list, err := c.convs.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	c.mu.Lock()
	c.conversations = list
	c.mu.Unlock()
	c.notify()
	return nil
}

// DeleteConversation removes a conversation server-side and locally.
func (c *Controller) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := c.convs.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	_ = c.store.SetTree(conversationID, chat.MessageMap{})

	c.mu.Lock()
	active := c.conversationID == conversationID
	c.mu.Unlock()
	if active {
		c.NewChat()
	}
	if err := c.SyncConversations(ctx); err != nil {
		c.logger.Warn("conversation list sync failed", "error", err)
	}
	return nil
}

// refreshCanonical replaces the local tree with server truth after a turn
// or feedback write. Failures are logged, not returned: the optimistic view
// remains usable and the next refresh will converge.
func (c *Controller) refreshCanonical(ctx context.Context, conversationID string) {
	conv, err := c.convs.GetConversation(ctx, conversationID)
	if err != nil {
		c.logger.Warn("canonical refresh failed", "conversation_id", conversationID, "error", err)
		return
	}
	c.applyCanonical(conv)
}

func (c *Controller) applyCanonical(conv *chat.Conversation) {
	if err := c.store.SetTree(conv.ID, conv.MessageMap); err != nil {
		// Malformed canonical data: keep the previous tree rather than
		// crash; display-time truncation handles partial history.
		c.logger.Error("canonical tree rejected", "conversation_id", conv.ID, "error", err)
		return
	}

	c.mu.Lock()
	c.currentMessageID = conv.LastMessageID
	c.shouldContinue = conv.ShouldContinue
	if docs, ok := c.relatedDocs[NewAssistantMessageID]; ok && len(docs) > 0 {
		c.relatedDocs[conv.LastMessageID] = docs
		delete(c.relatedDocs, NewAssistantMessageID)
	}
	// Canonical state settles the pending turn, if any; a citation poll
	// still outstanding for it must not land afterwards.
	c.pollSeq++
	c.mu.Unlock()
	c.notify()
}

// pollRelatedDocuments fetches citation chunks once per turn. The result is
// held under the placeholder id and moved to the server-assigned message id
// when canonical state lands. A result arriving after its turn has settled
// (seq no longer current) belongs to a message that will never claim it and
// is dropped.
func (c *Controller) pollRelatedDocuments(ctx context.Context, seq uint64, botID, conversationID string, msg chat.MessageInput) {
	docs, err := c.related.GetRelatedDocuments(ctx, chat.RelatedDocumentsRequest{
		BotID:          botID,
		ConversationID: conversationID,
		Message:        msg,
	})
	if err != nil {
		c.logger.Warn("related documents poll failed", "conversation_id", conversationID, "error", err)
		return
	}

	c.mu.Lock()
	if seq != c.pollSeq {
		c.mu.Unlock()
		c.logger.Debug("dropping citations for a settled turn", "conversation_id", conversationID)
		return
	}
	c.relatedDocs[NewAssistantMessageID] = docs
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
