package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/utils/platformerrors"
)

const doneMarker = "[DONE]"

// openAICompatAdapter implements the OpenAI chat-completions wire protocol,
// shared by every vendor exposing an OpenAI-compatible endpoint.
type openAICompatAdapter struct {
	kind                provider.Kind
	supportsAttachments bool
}

// OpenAIAdapter speaks to api.openai.com. Its parser also recognizes the
// Responses-flavor lifecycle events so both stream shapes decode to the same
// canonical events.
type OpenAIAdapter struct {
	openAICompatAdapter
}

// NewOpenAIAdapter builds the OpenAI adapter.
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{openAICompatAdapter{kind: provider.KindOpenAI, supportsAttachments: true}}
}

// GroqAdapter speaks Groq's OpenAI-compatible endpoint. Attachments are
// ignored rather than failing the request since the endpoint is text-only.
type GroqAdapter struct {
	openAICompatAdapter
}

// NewGroqAdapter builds the Groq adapter.
func NewGroqAdapter() *GroqAdapter {
	return &GroqAdapter{openAICompatAdapter{kind: provider.KindGroq, supportsAttachments: false}}
}

func (a *openAICompatAdapter) Kind() provider.Kind {
	return a.kind
}

// BuildRequest maps the transcript onto an OpenAI chat-completions request.
// The system prompt travels inline in the message array. The typed client has
// no "file" content part, so transcripts referencing uploaded files marshal
// through a raw body instead.
func (a *openAICompatAdapter) BuildRequest(params RequestParams) (any, error) {
	if a.hasFileRefs(params) {
		return a.buildRawRequest(params), nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(params.Transcript.Prompts))
	for _, p := range params.Transcript.Prompts {
		messages = append(messages, a.toMessage(p))
	}

	request := openai.ChatCompletionRequest{
		Model:    params.Model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if params.Temperature != nil {
		request.Temperature = *params.Temperature
	}
	if params.MaxTokens > 0 {
		request.MaxTokens = params.MaxTokens
	}
	return request, nil
}

func (a *openAICompatAdapter) hasFileRefs(params RequestParams) bool {
	if !a.supportsAttachments {
		return false
	}
	for _, p := range params.Transcript.Prompts {
		for _, file := range p.Files {
			if file.VendorFileID != "" {
				return true
			}
		}
	}
	return false
}

func (a *openAICompatAdapter) toMessage(p prompt.Prompt) openai.ChatCompletionMessage {
	message := openai.ChatCompletionMessage{
		Role: string(p.Role),
	}

	if !a.supportsAttachments || len(p.Files) == 0 {
		message.Content = p.Text
		return message
	}

	parts := []openai.ChatMessagePart{}
	if p.Text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: p.Text,
		})
	}
	for _, file := range p.Files {
		if strings.HasPrefix(file.MimeType, "image/") && len(file.Data) > 0 {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", file.MimeType, base64.StdEncoding.EncodeToString(file.Data)),
				},
			})
		}
	}
	message.MultiContent = parts
	return message
}

// openAIFileRef points at a file previously uploaded to the vendor.
type openAIFileRef struct {
	FileID string `json:"file_id"`
}

type openAIFilePart struct {
	Type string        `json:"type"`
	File openAIFileRef `json:"file"`
}

type openAIRawMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRawRequest struct {
	Model         string                `json:"model"`
	Messages      []openAIRawMessage    `json:"messages"`
	Stream        bool                  `json:"stream"`
	StreamOptions *openai.StreamOptions `json:"stream_options,omitempty"`
	Temperature   float32               `json:"temperature,omitempty"`
	MaxTokens     int                   `json:"max_tokens,omitempty"`
}

func (a *openAICompatAdapter) buildRawRequest(params RequestParams) openAIRawRequest {
	messages := make([]openAIRawMessage, 0, len(params.Transcript.Prompts))
	for _, p := range params.Transcript.Prompts {
		messages = append(messages, a.toRawMessage(p))
	}

	request := openAIRawRequest{
		Model:    params.Model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if params.Temperature != nil {
		request.Temperature = *params.Temperature
	}
	if params.MaxTokens > 0 {
		request.MaxTokens = params.MaxTokens
	}
	return request
}

func (a *openAICompatAdapter) toRawMessage(p prompt.Prompt) openAIRawMessage {
	if len(p.Files) == 0 {
		return openAIRawMessage{Role: string(p.Role), Content: p.Text}
	}

	parts := []any{}
	if p.Text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: p.Text,
		})
	}
	for _, file := range p.Files {
		switch {
		case strings.HasPrefix(file.MimeType, "image/") && len(file.Data) > 0:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", file.MimeType, base64.StdEncoding.EncodeToString(file.Data)),
				},
			})
		case file.VendorFileID != "":
			parts = append(parts, openAIFilePart{
				Type: "file",
				File: openAIFileRef{FileID: file.VendorFileID},
			})
		}
	}
	return openAIRawMessage{Role: string(p.Role), Content: parts}
}

// OpenStream opens the chat-completions SSE stream.
func (a *openAICompatAdapter) OpenStream(ctx context.Context, settings *provider.Settings, params RequestParams) (*Stream, error) {
	body, err := a.BuildRequest(params)
	if err != nil {
		return nil, err
	}
	client := newVendorClient(settings)
	return openVendorStream(ctx, client, "/chat/completions", body, FramingSSE)
}

type openAIStreamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type openAIResponsesEvent struct {
	Type     string          `json:"type"`
	Delta    json.RawMessage `json:"delta"`
	Response *struct {
		ID    string `json:"id"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one SSE payload. The "[DONE]" sentinel is the terminal
// marker for chat-completion streams; "response.completed" for the Responses
// flavor. Anything unrecognized is a no-op.
func (a *openAICompatAdapter) ParseEvent(payload string) llmstream.Event {
	data := strings.TrimSpace(payload)
	if data == "" {
		return llmstream.None()
	}
	if data == doneMarker {
		return llmstream.Done()
	}
	if !strings.HasPrefix(data, "{") {
		return llmstream.None()
	}

	var typed openAIResponsesEvent
	if err := json.Unmarshal([]byte(data), &typed); err != nil {
		return llmstream.None()
	}
	if typed.Type != "" {
		return a.parseResponsesEvent(typed)
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return llmstream.None()
	}
	if chunk.Error != nil {
		return llmstream.ErrorEvent(chunk.Error.Type, chunk.Error.Message)
	}

	var usage *llmstream.Usage
	if chunk.Usage != nil {
		usage = &llmstream.Usage{
			RequestID:    chunk.ID,
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}

	var content strings.Builder
	roleSeen := false
	for _, choice := range chunk.Choices {
		content.WriteString(choice.Delta.Content)
		if choice.Delta.Role != "" {
			roleSeen = true
		}
	}

	switch {
	case content.Len() > 0:
		event := llmstream.TextDelta(content.String(), chunk.ID)
		event.Usage = usage
		return event
	case usage != nil:
		return llmstream.Event{Kind: llmstream.KindUsage, RequestID: chunk.ID, Usage: usage}
	case roleSeen:
		return llmstream.MessageStart(chunk.ID)
	default:
		return llmstream.None()
	}
}

func (a *openAICompatAdapter) parseResponsesEvent(typed openAIResponsesEvent) llmstream.Event {
	switch typed.Type {
	case "response.created":
		if typed.Response != nil {
			return llmstream.MessageStart(typed.Response.ID)
		}
		return llmstream.MessageStart("")
	case "response.output_text.delta":
		var text string
		if err := json.Unmarshal(typed.Delta, &text); err != nil {
			return llmstream.None()
		}
		return llmstream.TextDelta(text, "")
	case "response.completed":
		event := llmstream.Done()
		if typed.Response != nil {
			event.RequestID = typed.Response.ID
			if typed.Response.Usage != nil {
				event.Usage = &llmstream.Usage{
					RequestID:    typed.Response.ID,
					InputTokens:  typed.Response.Usage.InputTokens,
					OutputTokens: typed.Response.Usage.OutputTokens,
					TotalTokens:  typed.Response.Usage.TotalTokens,
				}
			}
		}
		return event
	case "error":
		if typed.Error != nil {
			return llmstream.ErrorEvent(typed.Error.Code, typed.Error.Message)
		}
		return llmstream.ErrorEvent("", "upstream error")
	default:
		return llmstream.None()
	}
}

// GetTitle runs a small non-streaming completion to title a conversation.
func (a *openAICompatAdapter) GetTitle(ctx context.Context, settings *provider.Settings, userText string) (string, error) {
	model, err := titleModelFor(ctx, settings)
	if err != nil {
		return "", err
	}

	request := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titleInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		MaxTokens: titleMaxTokens,
	}

	var response openai.ChatCompletionResponse
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&response).
		Post("/chat/completions")
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"title request failed", err, "5f6a7b8c-9d0e-4f1a-8b2c-3d4e5f6a7b8c")
	}
	if resp.IsError() {
		return "", errorFromResponse(ctx, resp, "title request failed")
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return strings.Trim(strings.TrimSpace(response.Choices[0].Message.Content), `"`), nil
}

// ListModels fetches the vendor's /models catalog.
func (a *openAICompatAdapter) ListModels(ctx context.Context, settings *provider.Settings) ([]Model, error) {
	var response struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/models")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"list models failed", err, "6a7b8c9d-0e1f-4a2b-8c3d-4e5f6a7b8c9d")
	}
	if resp.IsError() {
		return nil, errorFromResponse(ctx, resp, "list models failed")
	}

	models := make([]Model, 0, len(response.Data))
	for _, item := range response.Data {
		models = append(models, Model{ID: item.ID, DisplayName: item.ID, Provider: a.kind})
	}
	return models, nil
}
