package tree

import (
	"errors"
	"fmt"
	"testing"

	"parley/internal/domain"
	"parley/internal/domain/models/chat"
)

func strPtr(s string) *string { return &s }

func textMessage(role, body string) chat.Message {
	return chat.Message{
		Role:    role,
		Content: []chat.ContentBlock{{ContentType: chat.ContentTypeText, Body: body}},
		Model:   "test-model",
	}
}

// pushChain builds root -> m1 -> m2 -> ... -> mN under one conversation.
func pushChain(s *Store, conversationID string, n int) []string {
	ids := make([]string, 0, n)
	parent := chat.SystemMessageID
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%d", i+1)
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		s.PushMessage(conversationID, strPtr(parent), id, textMessage(role, fmt.Sprintf("body %d", i+1)))
		ids = append(ids, id)
		parent = id
	}
	return ids
}

// checkInvariants verifies referential symmetry and acyclicity after a
// sequence of mutations.
func checkInvariants(t *testing.T, m chat.MessageMap) {
	t.Helper()

	for id, node := range m {
		for _, c := range node.Children {
			child, ok := m[c]
			if !ok {
				t.Fatalf("node %q lists missing child %q", id, c)
			}
			if child.Parent == nil || *child.Parent != id {
				t.Fatalf("child %q does not point back to parent %q", c, id)
			}
		}
		seen := map[string]bool{}
		cur := id
		for {
			if seen[cur] {
				t.Fatalf("node %q is its own ancestor", cur)
			}
			seen[cur] = true
			node, ok := m[cur]
			if !ok || node.Parent == nil {
				break
			}
			cur = *node.Parent
		}
	}
}

func TestPushMessageMaintainsTreeInvariants(t *testing.T) {
	s := NewStore()
	ids := pushChain(s, "conv", 4)

	// Branch: a sibling regeneration under m2.
	s.PushMessage("conv", strPtr(ids[1]), "m3b", textMessage(chat.RoleUser, "edited"))

	m := s.Tree("conv")
	checkInvariants(t, m)

	if got := m[ids[1]].Children; len(got) != 2 || got[0] != ids[2] || got[1] != "m3b" {
		t.Fatalf("sibling order not preserved: %v", got)
	}
}

func TestPushMessageRootResetsConversation(t *testing.T) {
	s := NewStore()
	pushChain(s, "conv", 3)

	// A push addressed to the synthetic root replaces the tree wholesale.
	s.PushMessage("conv", strPtr(chat.SystemMessageID), "fresh", textMessage(chat.RoleUser, "hi"))

	m := s.Tree("conv")
	if len(m) != 1 {
		t.Fatalf("expected single-node tree, got %d nodes", len(m))
	}
	if m["fresh"].Parent != nil {
		t.Fatalf("expected fresh root to have nil parent")
	}
}

func TestLinearizeChain(t *testing.T) {
	s := NewStore()
	ids := pushChain(s, "conv", 5)

	tests := []struct {
		name   string
		leafID string
	}{
		{name: "explicit leaf", leafID: ids[4]},
		{name: "mid-tree anchor descends to leaf", leafID: ids[2]},
		{name: "unknown leaf falls back to root walk", leafID: "nope"},
		{name: "empty leaf falls back to root walk", leafID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Linearize("conv", tt.leafID)
			if len(got) != len(ids) {
				t.Fatalf("expected %d messages, got %d", len(ids), len(got))
			}
			for i, id := range ids {
				if got[i].ID != id {
					t.Fatalf("position %d: expected %q, got %q", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestLinearizeStripsSystemRootAndAnnotatesSiblings(t *testing.T) {
	s := NewStore()
	tree := chat.MessageMap{
		"system": {Role: chat.RoleSystem, Parent: nil, Children: []string{"u1"}, Model: "test-model"},
		"u1":     {Role: chat.RoleUser, Parent: strPtr("system"), Children: []string{"a1", "a2"}},
		"a1":     {Role: chat.RoleAssistant, Parent: strPtr("u1"), Children: []string{}},
		"a2":     {Role: chat.RoleAssistant, Parent: strPtr("u1"), Children: []string{}},
	}
	if err := s.SetTree("conv", tree); err != nil {
		t.Fatalf("SetTree: %v", err)
	}

	got := s.Linearize("conv", "a2")
	if len(got) != 2 {
		t.Fatalf("expected system node stripped, got %d messages", len(got))
	}
	if got[0].ID != "u1" || got[1].ID != "a2" {
		t.Fatalf("unexpected path: %s -> %s", got[0].ID, got[1].ID)
	}
	if len(got[1].Sibling) != 2 || got[1].Sibling[0] != "a1" || got[1].Sibling[1] != "a2" {
		t.Fatalf("sibling annotation wrong: %v", got[1].Sibling)
	}
}

func TestLinearizeUnknownConversationIsEmpty(t *testing.T) {
	s := NewStore()
	if got := s.Linearize("missing", ""); got != nil {
		t.Fatalf("expected nil for unknown conversation, got %v", got)
	}
}

func TestEditMessageTextIsIdempotent(t *testing.T) {
	once := NewStore()
	twice := NewStore()
	for _, s := range []*Store{once, twice} {
		pushChain(s, "conv", 2)
	}

	once.EditMessageText("conv", "m2", "final text")
	twice.EditMessageText("conv", "m2", "final text")
	twice.EditMessageText("conv", "m2", "final text")

	a := once.Tree("conv")["m2"].FirstTextBody()
	b := twice.Tree("conv")["m2"].FirstTextBody()
	if a != b || a != "final text" {
		t.Fatalf("edit not idempotent: %q vs %q", a, b)
	}
}

func TestEditMessageTextSnapshotIsolation(t *testing.T) {
	s := NewStore()
	pushChain(s, "conv", 2)

	before := s.Tree("conv")
	s.EditMessageText("conv", "m2", "updated")

	if got := before["m2"].FirstTextBody(); got != "body 2" {
		t.Fatalf("mutation leaked into prior snapshot: %q", got)
	}
	if got := s.Tree("conv")["m2"].FirstTextBody(); got != "updated" {
		t.Fatalf("edit not applied: %q", got)
	}
}

func TestRemoveMessageCascades(t *testing.T) {
	s := NewStore()
	ids := pushChain(s, "conv", 2) // m1 -> m2
	s.PushMessage("conv", strPtr(ids[1]), "m3", textMessage(chat.RoleUser, "q"))
	s.PushMessage("conv", strPtr(ids[1]), "m3b", textMessage(chat.RoleUser, "q'"))
	s.PushMessage("conv", strPtr("m3"), "m4", textMessage(chat.RoleAssistant, "a"))

	// m2 has descendants m3, m3b, m4: removing it drops exactly 4 nodes.
	s.RemoveMessage("conv", ids[1])

	m := s.Tree("conv")
	if len(m) != 1 {
		t.Fatalf("expected 1 surviving node, got %d", len(m))
	}
	if got := m[ids[0]].Children; len(got) != 0 {
		t.Fatalf("removed id still referenced by parent: %v", got)
	}
	checkInvariants(t, m)
}

func TestRemoveRootEmptiesTree(t *testing.T) {
	s := NewStore()
	pushChain(s, "conv", 3)

	s.RemoveMessage("conv", "m1")
	if m := s.Tree("conv"); len(m) != 0 {
		t.Fatalf("expected empty tree after root removal, got %d nodes", len(m))
	}
}

func TestSetTreeRejectsMalformedTrees(t *testing.T) {
	tests := []struct {
		name string
		tree chat.MessageMap
	}{
		{
			name: "orphan child reference",
			tree: chat.MessageMap{
				"r": {Parent: nil, Children: []string{"ghost"}},
			},
		},
		{
			name: "child not pointing back",
			tree: chat.MessageMap{
				"r":  {Parent: nil, Children: []string{"c"}},
				"c":  {Parent: strPtr("r2"), Children: []string{}},
				"r2": {Parent: nil, Children: []string{}},
			},
		},
		{
			name: "cycle",
			tree: chat.MessageMap{
				"a": {Parent: strPtr("b"), Children: []string{"b"}},
				"b": {Parent: strPtr("a"), Children: []string{"a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.SetTree("conv", tt.tree)
			var malformed *domain.MalformedTreeError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedTreeError, got %v", err)
			}
			// Nothing installed.
			if m := s.Tree("conv"); len(m) != 0 {
				t.Fatalf("malformed tree was installed: %d nodes", len(m))
			}
		})
	}
}

func TestCopyTreeIsDeep(t *testing.T) {
	s := NewStore()
	pushChain(s, "conv", 2)

	s.CopyTree("conv", "copy")
	s.EditMessageText("copy", "m2", "mutated copy")

	if got := s.Tree("conv")["m2"].FirstTextBody(); got != "body 2" {
		t.Fatalf("copy mutation leaked into source: %q", got)
	}
	if got := s.Tree("copy")["m2"].FirstTextBody(); got != "mutated copy" {
		t.Fatalf("copy not mutated: %q", got)
	}
}
