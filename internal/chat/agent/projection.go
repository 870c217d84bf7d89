package agent

import (
	"parley/internal/domain/models/chat"
)

// ToolCallRecord is one reconstructed tool invocation from a persisted
// message, in the same shape the live machine tracks.
type ToolCallRecord struct {
	ToolUseID string
	Name      string
	Input     map[string]any
	Status    ToolUseState
	Content   string
}

// ToolCallsFromContent rebuilds the tool-call history of a persisted
// message by pairing toolUse content blocks with subsequent toolResult
// blocks on matching toolUseId. A toolUse with no result stays running;
// a toolResult with no matching toolUse is dropped, mirroring the live
// machine's tolerance for out-of-order delivery.
func ToolCallsFromContent(blocks []chat.ContentBlock) []ToolCallRecord {
	var order []string
	byID := make(map[string]*ToolCallRecord)

	for _, b := range blocks {
		switch b.ContentType {
		case chat.ContentTypeToolUse:
			if _, ok := byID[b.ToolUseID]; ok {
				continue
			}
			byID[b.ToolUseID] = &ToolCallRecord{
				ToolUseID: b.ToolUseID,
				Name:      b.ToolName,
				Input:     b.ToolInput,
				Status:    ToolRunning,
			}
			order = append(order, b.ToolUseID)

		case chat.ContentTypeToolResult:
			rec, ok := byID[b.ToolUseID]
			if !ok {
				continue
			}
			rec.Status = ToolUseState(b.ToolStatus)
			if rec.Status != ToolSuccess && rec.Status != ToolError {
				rec.Status = ToolError
			}
			rec.Content = b.Body
		}
	}

	out := make([]ToolCallRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
