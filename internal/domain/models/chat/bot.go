package chat

// Bot sync statuses reported by the bot metadata collaborator API.
const (
	BotSyncStatusQueued    = "QUEUED"
	BotSyncStatusRunning   = "RUNNING"
	BotSyncStatusSucceeded = "SUCCEEDED"
	BotSyncStatusFailed    = "FAILED"
)

// GenerationParams are the bot's generation parameter defaults.
// Read-only from this core's perspective.
type GenerationParams struct {
	MaxTokens   int     `json:"maxTokens"`
	TopK        int     `json:"topK"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

// SearchParams are the bot's knowledge-search parameter defaults.
type SearchParams struct {
	MaxResults int `json:"maxResults"`
}

// BotMeta is the read-only bot metadata contract.
type BotMeta struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	SyncStatus       string           `json:"syncStatus"`
	HasKnowledge     bool             `json:"hasKnowledge"`
	GenerationParams GenerationParams `json:"generationParams"`
	SearchParams     SearchParams     `json:"searchParams"`
}
