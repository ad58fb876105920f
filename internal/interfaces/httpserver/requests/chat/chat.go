package chatrequests

// ChatRequest is the single conversation-aware chat entry point. An empty
// ConversationID starts a new conversation.
type ChatRequest struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model"`
	Text           string   `json:"text"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
	FileIDs        []string `json:"file_ids,omitempty"`
	Temperature    *float32 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	Stream         bool     `json:"stream,omitempty"`
}

// RegenerateRequest rewinds a conversation to the anchor message and re-runs
// the turn. Text replaces the user turn (edit); empty Text regenerates the
// answer to the surviving user turn.
type RegenerateRequest struct {
	AnchorMessageID string   `json:"anchor_message_id"`
	Text            string   `json:"text,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxTokens       int      `json:"max_tokens,omitempty"`
	Stream          bool     `json:"stream,omitempty"`
}
