package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/utils/platformerrors"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicAdapter speaks the Anthropic Messages API.
type AnthropicAdapter struct{}

// NewAnthropicAdapter builds the Anthropic adapter.
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{}
}

func (a *AnthropicAdapter) Kind() provider.Kind {
	return provider.KindAnthropic
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Source *anthropicFileSource `json:"source,omitempty"`
}

type anthropicFileSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// BuildRequest maps the transcript onto a Messages API request. The system
// prompt moves to the top-level "system" field; image and pdf attachments
// become base64 content blocks.
func (a *AnthropicAdapter) BuildRequest(params RequestParams) (any, error) {
	request := anthropicRequest{
		Model:       params.Model,
		MaxTokens:   params.MaxTokens,
		Stream:      true,
		Temperature: params.Temperature,
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = anthropicDefaultMaxTokens
	}

	for _, p := range params.Transcript.Prompts {
		if p.Role == prompt.RoleSystem {
			request.System = p.Text
			continue
		}
		request.Messages = append(request.Messages, anthropicMessage{
			Role:    string(p.Role),
			Content: a.contentBlocks(p),
		})
	}
	return request, nil
}

func (a *AnthropicAdapter) contentBlocks(p prompt.Prompt) []anthropicContentBlock {
	blocks := []anthropicContentBlock{}
	if p.Text != "" {
		blocks = append(blocks, anthropicContentBlock{Type: "text", Text: p.Text})
	}
	for _, file := range p.Files {
		if len(file.Data) == 0 {
			continue
		}
		source := &anthropicFileSource{
			Type:      "base64",
			MediaType: file.MimeType,
			Data:      base64.StdEncoding.EncodeToString(file.Data),
		}
		switch {
		case strings.HasPrefix(file.MimeType, "image/"):
			blocks = append(blocks, anthropicContentBlock{Type: "image", Source: source})
		case file.MimeType == "application/pdf":
			blocks = append(blocks, anthropicContentBlock{Type: "document", Source: source})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicContentBlock{Type: "text", Text: p.Text})
	}
	return blocks
}

// OpenStream opens the Messages SSE stream.
func (a *AnthropicAdapter) OpenStream(ctx context.Context, settings *provider.Settings, params RequestParams) (*Stream, error) {
	body, err := a.BuildRequest(params)
	if err != nil {
		return nil, err
	}
	client := newVendorClient(settings)
	return openVendorStream(ctx, client, "/messages", body, FramingSSE)
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string `json:"id"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one Messages stream payload. "message_stop" is the
// terminal marker and carries no text itself; pings and block lifecycle
// events are no-ops.
func (a *AnthropicAdapter) ParseEvent(payload string) llmstream.Event {
	data := strings.TrimSpace(payload)
	if data == "" || !strings.HasPrefix(data, "{") {
		return llmstream.None()
	}

	var event anthropicStreamEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return llmstream.None()
	}

	switch event.Type {
	case "message_start":
		if event.Message == nil {
			return llmstream.MessageStart("")
		}
		start := llmstream.MessageStart(event.Message.ID)
		if event.Message.Usage != nil {
			start.Usage = &llmstream.Usage{
				RequestID:   event.Message.ID,
				InputTokens: event.Message.Usage.InputTokens,
			}
		}
		return start
	case "content_block_delta":
		if event.Delta == nil || event.Delta.Type != "text_delta" {
			return llmstream.None()
		}
		return llmstream.TextDelta(event.Delta.Text, "")
	case "message_delta":
		if event.Usage == nil {
			return llmstream.None()
		}
		return llmstream.Event{
			Kind: llmstream.KindUsage,
			Usage: &llmstream.Usage{
				InputTokens:  event.Usage.InputTokens,
				OutputTokens: event.Usage.OutputTokens,
				TotalTokens:  event.Usage.InputTokens + event.Usage.OutputTokens,
			},
		}
	case "message_stop":
		return llmstream.Done()
	case "error":
		if event.Error != nil {
			return llmstream.ErrorEvent(event.Error.Type, event.Error.Message)
		}
		return llmstream.ErrorEvent("", "upstream error")
	default:
		return llmstream.None()
	}
}

// GetTitle runs a small non-streaming Messages call.
func (a *AnthropicAdapter) GetTitle(ctx context.Context, settings *provider.Settings, userText string) (string, error) {
	model, err := titleModelFor(ctx, settings)
	if err != nil {
		return "", err
	}

	request := anthropicRequest{
		Model:     model,
		MaxTokens: titleMaxTokens,
		System:    titleInstruction,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: userText}}},
		},
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&response).
		Post("/messages")
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"title request failed", err, "7b8c9d0e-1f2a-4b3c-8d4e-5f6a7b8c9d0e")
	}
	if resp.IsError() {
		return "", errorFromResponse(ctx, resp, "title request failed")
	}
	for _, block := range response.Content {
		if block.Type == "text" {
			return strings.Trim(strings.TrimSpace(block.Text), `"`), nil
		}
	}
	return "", nil
}

// ListModels fetches the vendor's model catalog.
func (a *AnthropicAdapter) ListModels(ctx context.Context, settings *provider.Settings) ([]Model, error) {
	var response struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/models")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"list models failed", err, "8c9d0e1f-2a3b-4c4d-8e5f-6a7b8c9d0e1f")
	}
	if resp.IsError() {
		return nil, errorFromResponse(ctx, resp, "list models failed")
	}

	models := make([]Model, 0, len(response.Data))
	for _, item := range response.Data {
		name := item.DisplayName
		if name == "" {
			name = item.ID
		}
		models = append(models, Model{ID: item.ID, DisplayName: name, Provider: provider.KindAnthropic})
	}
	return models, nil
}
