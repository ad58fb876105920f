package chatresponses

import (
	"parley-server/internal/domain/turn"
	conversationresponses "parley-server/internal/interfaces/httpserver/responses/conversation"
)

// UsageResponse reports vendor token accounting for one turn.
type UsageResponse struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	RequestID    string `json:"request_id,omitempty"`
}

// TurnResponse is the non-streaming chat response.
type TurnResponse struct {
	Object         string                                 `json:"object"`
	ConversationID string                                 `json:"conversation_id"`
	Title          string                                 `json:"title,omitempty"`
	Message        *conversationresponses.MessageResponse `json:"message,omitempty"`
	Usage          UsageResponse                          `json:"usage"`
	LatencyMS      int64                                  `json:"latency_ms"`
}

// TurnMetadata is the trailing SSE event carrying ids and usage, written
// after the last chunk and before the terminal marker.
type TurnMetadata struct {
	Object         string        `json:"object"`
	ConversationID string        `json:"conversation_id"`
	Title          string        `json:"title,omitempty"`
	MessageID      string        `json:"message_id,omitempty"`
	Usage          UsageResponse `json:"usage"`
	LatencyMS      int64         `json:"latency_ms"`
}

// NewTurnResponse builds the non-streaming response from a turn result.
func NewTurnResponse(result *turn.Result) *TurnResponse {
	response := &TurnResponse{
		Object: "chat.turn",
		Usage: UsageResponse{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.TotalTokens,
			RequestID:    result.Usage.RequestID,
		},
		LatencyMS: result.LatencyMS,
	}
	if result.Conversation != nil {
		response.ConversationID = result.Conversation.PublicID
		response.Title = result.Conversation.Title
	}
	if result.AssistantMessage != nil {
		response.Message = conversationresponses.NewMessageResponse(result.AssistantMessage)
	}
	return response
}

// NewTurnMetadata builds the trailing SSE metadata event from a turn result.
func NewTurnMetadata(result *turn.Result) *TurnMetadata {
	metadata := &TurnMetadata{
		Object: "chat.turn.metadata",
		Usage: UsageResponse{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.TotalTokens,
			RequestID:    result.Usage.RequestID,
		},
		LatencyMS: result.LatencyMS,
	}
	if result.Conversation != nil {
		metadata.ConversationID = result.Conversation.PublicID
		metadata.Title = result.Conversation.Title
	}
	if result.AssistantMessage != nil {
		metadata.MessageID = result.AssistantMessage.PublicID
	}
	return metadata
}
