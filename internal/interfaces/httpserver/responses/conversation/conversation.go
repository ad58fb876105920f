package conversationresponses

import (
	"parley-server/internal/domain/conversation"
)

// ConversationResponse represents one conversation over the wire.
type ConversationResponse struct {
	ID            string         `json:"id"`
	Object        string         `json:"object"`
	Title         string         `json:"title"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model"`
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	MessageCount  int            `json:"message_count"`
	TotalTokens   int64          `json:"total_tokens"`
	TotalCost     string         `json:"total_cost"`
	Archived      bool           `json:"archived"`
	LastMessageAt *int64         `json:"last_message_at,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     int64          `json:"created_at"`
	UpdatedAt     int64          `json:"updated_at"`
}

// ConversationListResponse represents a list of conversations.
type ConversationListResponse struct {
	Object string                 `json:"object"`
	Data   []ConversationResponse `json:"data"`
}

// ConversationDeletedResponse represents the delete confirmation response.
type ConversationDeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// MessageResponse represents one live chain entry over the wire.
type MessageResponse struct {
	ID            string         `json:"id"`
	Object        string         `json:"object"`
	PrevMessageID *uint          `json:"-"`
	Role          string         `json:"role"`
	Content       string         `json:"content"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	InputTokens   int            `json:"input_tokens,omitempty"`
	OutputTokens  int            `json:"output_tokens,omitempty"`
	TotalTokens   int            `json:"total_tokens,omitempty"`
	LatencyMS     int64          `json:"latency_ms,omitempty"`
	Cost          string         `json:"cost,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     int64          `json:"created_at"`
}

// MessageListResponse represents a conversation's live chain.
type MessageListResponse struct {
	Object string            `json:"object"`
	Data   []MessageResponse `json:"data"`
}

// NewConversationResponse creates a response from a domain conversation.
func NewConversationResponse(conv *conversation.Conversation) *ConversationResponse {
	response := &ConversationResponse{
		ID:           conv.PublicID,
		Object:       "conversation",
		Title:        conv.Title,
		Provider:     conv.Provider,
		Model:        conv.Model,
		SystemPrompt: conv.SystemPrompt,
		MessageCount: conv.MessageCount,
		TotalTokens:  conv.TotalTokens,
		TotalCost:    conv.TotalCost.String(),
		Archived:     conv.Archived(),
		Metadata:     conv.Metadata,
		CreatedAt:    conv.CreatedAt.Unix(),
		UpdatedAt:    conv.UpdatedAt.Unix(),
	}
	if conv.LastMessageAt != nil {
		ts := conv.LastMessageAt.Unix()
		response.LastMessageAt = &ts
	}
	return response
}

// NewConversationListResponse creates a conversation list response.
func NewConversationListResponse(conversations []*conversation.Conversation) *ConversationListResponse {
	data := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		data = append(data, *NewConversationResponse(conv))
	}
	return &ConversationListResponse{Object: "list", Data: data}
}

// NewConversationDeletedResponse creates a delete confirmation response.
func NewConversationDeletedResponse(publicID string) *ConversationDeletedResponse {
	return &ConversationDeletedResponse{
		ID:      publicID,
		Object:  "conversation.deleted",
		Deleted: true,
	}
}

// NewMessageResponse creates a response from a domain message.
func NewMessageResponse(msg *conversation.Message) *MessageResponse {
	return &MessageResponse{
		ID:           msg.PublicID,
		Object:       "message",
		Role:         string(msg.Role),
		Content:      msg.Content,
		Provider:     msg.Provider,
		Model:        msg.Model,
		InputTokens:  msg.InputTokens,
		OutputTokens: msg.OutputTokens,
		TotalTokens:  msg.TotalTokens,
		LatencyMS:    msg.LatencyMS,
		Cost:         msg.Cost.String(),
		Metadata:     msg.Metadata,
		CreatedAt:    msg.CreatedAt.Unix(),
	}
}

// NewMessageListResponse creates a message list response.
func NewMessageListResponse(messages []*conversation.Message) *MessageListResponse {
	data := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		data = append(data, *NewMessageResponse(msg))
	}
	return &MessageListResponse{Object: "list", Data: data}
}
