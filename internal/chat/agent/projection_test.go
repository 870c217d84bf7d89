package agent

import (
	"testing"

	"parley/internal/domain/models/chat"
)

func TestToolCallsFromContent(t *testing.T) {
	tests := []struct {
		name   string
		blocks []chat.ContentBlock
		want   []ToolCallRecord
	}{
		{
			name:   "no tool blocks",
			blocks: []chat.ContentBlock{{ContentType: chat.ContentTypeText, Body: "hello"}},
			want:   []ToolCallRecord{},
		},
		{
			name: "use paired with result",
			blocks: []chat.ContentBlock{
				{ContentType: chat.ContentTypeToolUse, ToolUseID: "t1", ToolName: "search", ToolInput: map[string]any{"q": "go"}},
				{ContentType: chat.ContentTypeToolResult, ToolUseID: "t1", ToolStatus: "success", Body: "3 hits"},
			},
			want: []ToolCallRecord{
				{ToolUseID: "t1", Name: "search", Input: map[string]any{"q": "go"}, Status: ToolSuccess, Content: "3 hits"},
			},
		},
		{
			name: "use without result stays running",
			blocks: []chat.ContentBlock{
				{ContentType: chat.ContentTypeToolUse, ToolUseID: "t1", ToolName: "search"},
			},
			want: []ToolCallRecord{
				{ToolUseID: "t1", Name: "search", Status: ToolRunning},
			},
		},
		{
			name: "orphan result is dropped",
			blocks: []chat.ContentBlock{
				{ContentType: chat.ContentTypeToolResult, ToolUseID: "ghost", ToolStatus: "success", Body: "x"},
			},
			want: []ToolCallRecord{},
		},
		{
			name: "unrecognized status normalizes to error",
			blocks: []chat.ContentBlock{
				{ContentType: chat.ContentTypeToolUse, ToolUseID: "t1", ToolName: "calc"},
				{ContentType: chat.ContentTypeToolResult, ToolUseID: "t1", ToolStatus: "exploded", Body: "boom"},
			},
			want: []ToolCallRecord{
				{ToolUseID: "t1", Name: "calc", Status: ToolError, Content: "boom"},
			},
		},
		{
			name: "invocation order preserved across interleaved results",
			blocks: []chat.ContentBlock{
				{ContentType: chat.ContentTypeToolUse, ToolUseID: "t1", ToolName: "first"},
				{ContentType: chat.ContentTypeToolUse, ToolUseID: "t2", ToolName: "second"},
				{ContentType: chat.ContentTypeToolResult, ToolUseID: "t2", ToolStatus: "error", Body: "late"},
				{ContentType: chat.ContentTypeToolResult, ToolUseID: "t1", ToolStatus: "success", Body: "early"},
			},
			want: []ToolCallRecord{
				{ToolUseID: "t1", Name: "first", Status: ToolSuccess, Content: "early"},
				{ToolUseID: "t2", Name: "second", Status: ToolError, Content: "late"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolCallsFromContent(tt.blocks)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				g := got[i]
				if g.ToolUseID != w.ToolUseID || g.Name != w.Name || g.Status != w.Status || g.Content != w.Content {
					t.Fatalf("record %d = %+v, want %+v", i, g, w)
				}
			}
		})
	}
}
