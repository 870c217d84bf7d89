// Package tree holds per-conversation message trees as flat id -> node maps
// with parent/children pointers, and provides tree-aware operations:
// insertion, cascade deletion, wholesale replacement, and linearization of
// one root-to-leaf path for display.
//
// Every mutation installs a freshly built map (copy-on-write), so a snapshot
// handed to a reader is never modified after the fact. Readers therefore
// never observe a partially-updated tree, and no locking is needed beyond
// the store's own guard.
package tree

import (
	"fmt"
	"sort"
	"sync"

	"parley/internal/domain"
	"parley/internal/domain/models/chat"
)

// Store maps conversation ids to message trees.
// The zero value is not usable; use NewStore.
type Store struct {
	mu    sync.RWMutex
	chats map[string]chat.MessageMap
}

// NewStore creates an empty message-tree store.
func NewStore() *Store {
	return &Store{
		chats: make(map[string]chat.MessageMap),
	}
}

// Tree returns the current tree snapshot for a conversation. An unknown
// conversation id yields an empty tree - the default "no conversation
// selected" state. The returned map must be treated as read-only.
func (s *Store) Tree(conversationID string) chat.MessageMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.chats[conversationID]; ok {
		return m
	}
	return chat.MessageMap{}
}

// Message looks up a single message in a conversation's tree.
func (s *Store) Message(conversationID, messageID string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.chats[conversationID][messageID]
	return m, ok
}

// SetTree replaces a conversation's tree wholesale, typically after a full
// reload from the conversation API. The tree is validated structurally and
// rejected with MalformedTreeError on a cyclic or orphaned reference;
// production data is trusted, but a bad payload must not corrupt the store.
func (s *Store) SetTree(conversationID string, tree chat.MessageMap) error {
	if err := validateTree(conversationID, tree); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(conversationID, cloneTree(tree))
	return nil
}

// CopyTree deep-copies one conversation's tree to a new id. Used to give
// callers an immediate, consistent view of a brand-new conversation before
// the backend-assigned id becomes authoritative.
func (s *Store) CopyTree(fromID, toID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(toID, cloneTree(s.chats[fromID]))
}

// PushMessage inserts a message. When parentID names an existing message
// (and is not the synthetic "system" literal), the message becomes its
// newest child; sibling order is insertion order. Otherwise the message
// becomes the sole root of a fresh tree for this conversation.
func (s *Store) PushMessage(conversationID string, parentID *string, messageID string, msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.chats[conversationID]

	if len(cur) > 0 && parentID != nil && *parentID != chat.SystemMessageID {
		if parent, ok := cur[*parentID]; ok {
			next := cloneTree(cur)
			parent.Children = append(append([]string{}, parent.Children...), messageID)
			next[*parentID] = parent

			msg.Parent = parentID
			msg.Children = []string{}
			next[messageID] = msg

			s.install(conversationID, next)
			return
		}
	}

	// Root insertion replaces whatever was held under this id; the transient
	// conversation ("") is reset this way at the start of every new chat.
	msg.Parent = nil
	msg.Children = []string{}
	s.install(conversationID, chat.MessageMap{messageID: msg})
}

// EditMessageText replaces the body of the message's first text content
// block. This is the single mutation point driven per streaming chunk:
// last write wins, no accumulation happens here.
func (s *Store) EditMessageText(conversationID, messageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.chats[conversationID]
	msg, ok := cur[messageID]
	if !ok {
		return
	}

	content := append([]chat.ContentBlock{}, msg.Content...)
	replaced := false
	for i := range content {
		if content[i].ContentType == chat.ContentTypeText {
			content[i].Body = text
			replaced = true
			break
		}
	}
	if !replaced {
		content = append(content, chat.ContentBlock{ContentType: chat.ContentTypeText, Body: text})
	}
	msg.Content = content

	next := cloneTree(cur)
	next[messageID] = msg
	s.install(conversationID, next)
}

// RemoveMessage deletes a message and, recursively, all of its descendants,
// then drops the id from its former parent's children. Removing the root
// empties the conversation's tree.
func (s *Store) RemoveMessage(conversationID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.chats[conversationID]
	target, ok := cur[messageID]
	if !ok {
		return
	}

	next := cloneTree(cur)

	// Collect and delete the whole subtree. Deletion order is unspecified.
	pending := append([]string{}, target.Children...)
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if node, ok := next[id]; ok {
			pending = append(pending, node.Children...)
			delete(next, id)
		}
	}
	delete(next, messageID)

	// Drop the removed id from any remaining children lists.
	for id, node := range next {
		for i, c := range node.Children {
			if c == messageID {
				node.Children = append(append([]string{}, node.Children[:i]...), node.Children[i+1:]...)
				next[id] = node
				break
			}
		}
	}

	s.install(conversationID, next)
}

// Linearize produces the ordered root-to-leaf message sequence for display.
//
// When leafID names a message, the walk first descends along default
// children to the actual leaf, then climbs to the root and reverses. When
// leafID is empty or unknown, the walk starts at the root and follows the
// first child at each step. Broken references and cycles truncate the chain
// silently; the synthetic "system" root is stripped from the output.
func (s *Store) Linearize(conversationID, leafID string) []chat.DisplayMessage {
	s.mu.RLock()
	m := s.chats[conversationID]
	s.mu.RUnlock()

	if len(m) == 0 {
		return nil
	}

	var out []chat.DisplayMessage
	if _, ok := m[leafID]; ok {
		out = linearizeFromLeaf(m, leafID)
	} else {
		out = linearizeFromRoot(m)
	}
	if len(out) == 0 {
		return nil
	}

	annotateSiblings(out)

	if out[0].ID == chat.SystemMessageID {
		out = out[1:]
	}
	return out
}

// linearizeFromLeaf descends from start to the default leaf, then climbs to
// the root, building the sequence back-to-front.
func linearizeFromLeaf(m chat.MessageMap, start string) []chat.DisplayMessage {
	key := start
	seen := map[string]bool{key: true}
	for len(m[key].Children) > 0 {
		next := m[key].Children[0]
		if _, ok := m[next]; !ok || seen[next] {
			break
		}
		key = next
		seen[next] = true
	}

	var out []chat.DisplayMessage
	visited := make(map[string]bool)
	for {
		node, ok := m[key]
		if !ok || visited[key] {
			// Broken or cyclic parent chain: truncate here and present what
			// remains as a complete path.
			if len(out) > 0 {
				out[0].Parent = nil
			}
			break
		}
		visited[key] = true
		out = append([]chat.DisplayMessage{displayMessage(key, node)}, out...)
		if node.Parent == nil {
			break
		}
		key = *node.Parent
	}
	return out
}

// linearizeFromRoot walks forward from the root, taking the first child at
// each step.
func linearizeFromRoot(m chat.MessageMap) []chat.DisplayMessage {
	key, ok := rootID(m)
	if !ok {
		return nil
	}

	var out []chat.DisplayMessage
	visited := make(map[string]bool)
	for key != "" {
		node, ok := m[key]
		if !ok || visited[key] {
			if len(out) > 0 {
				out[len(out)-1].Children = []string{}
			}
			break
		}
		visited[key] = true
		out = append(out, displayMessage(key, node))
		if len(node.Children) == 0 {
			break
		}
		key = node.Children[0]
	}
	return out
}

// rootID picks the tree's root: the node with a nil parent. Map iteration
// order is randomized, so ties on malformed multi-root data are broken
// deterministically (the "system" node first, then lowest id).
func rootID(m chat.MessageMap) (string, bool) {
	var roots []string
	for id, node := range m {
		if node.Parent == nil {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 {
		return "", false
	}
	for _, id := range roots {
		if id == chat.SystemMessageID {
			return id, true
		}
	}
	sort.Strings(roots)
	return roots[0], true
}

func annotateSiblings(out []chat.DisplayMessage) {
	out[0].Sibling = []string{out[0].ID}
	for i := 0; i < len(out)-1; i++ {
		if len(out[i].Children) > 0 {
			out[i+1].Sibling = append([]string{}, out[i].Children...)
		}
	}
}

func displayMessage(id string, node chat.Message) chat.DisplayMessage {
	return chat.DisplayMessage{
		ID:         id,
		Role:       node.Role,
		Content:    node.Content,
		Model:      node.Model,
		Parent:     node.Parent,
		Children:   append([]string{}, node.Children...),
		Sibling:    []string{},
		Feedback:   node.Feedback,
		UsedChunks: node.UsedChunks,
	}
}

// install stores the next snapshot for a conversation. Callers must hold
// the write lock and must not touch the map after installing it.
func (s *Store) install(conversationID string, m chat.MessageMap) {
	s.chats[conversationID] = m
}

// cloneTree shallow-copies the arena and each node's children list, enough
// to keep prior snapshots immutable. Content slices are shared until a
// mutation touches them.
func cloneTree(m chat.MessageMap) chat.MessageMap {
	next := make(chat.MessageMap, len(m))
	for id, node := range m {
		node.Children = append([]string{}, node.Children...)
		next[id] = node
	}
	return next
}

// validateTree checks referential symmetry and acyclicity: every child
// pointer resolves to a node naming this one as parent, every parent
// pointer resolves, and no id appears in its own ancestor chain.
func validateTree(conversationID string, m chat.MessageMap) error {
	for id, node := range m {
		for _, c := range node.Children {
			child, ok := m[c]
			if !ok {
				return &domain.MalformedTreeError{
					ConversationID: conversationID,
					Message:        fmt.Sprintf("message %q references missing child %q", id, c),
				}
			}
			if child.Parent == nil || *child.Parent != id {
				return &domain.MalformedTreeError{
					ConversationID: conversationID,
					Message:        fmt.Sprintf("child %q of %q does not point back to its parent", c, id),
				}
			}
		}
		if node.Parent != nil {
			parent, ok := m[*node.Parent]
			if !ok {
				return &domain.MalformedTreeError{
					ConversationID: conversationID,
					Message:        fmt.Sprintf("message %q references missing parent %q", id, *node.Parent),
				}
			}
			listed := false
			for _, c := range parent.Children {
				if c == id {
					listed = true
					break
				}
			}
			if !listed {
				return &domain.MalformedTreeError{
					ConversationID: conversationID,
					Message:        fmt.Sprintf("message %q is not listed among the children of its parent %q", id, *node.Parent),
				}
			}
		}
	}

	for id := range m {
		seen := map[string]bool{}
		cur := id
		for {
			if seen[cur] {
				return &domain.MalformedTreeError{
					ConversationID: conversationID,
					Message:        fmt.Sprintf("cycle detected through message %q", cur),
				}
			}
			seen[cur] = true
			parent := m[cur].Parent
			if parent == nil {
				break
			}
			cur = *parent
		}
	}
	return nil
}
