package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/utils/platformerrors"
)

// GeminiAdapter speaks the Gemini generateContent API. Its streaming
// endpoint returns a JSON array spread over the response, so payloads carry
// array framing instead of SSE data lines.
type GeminiAdapter struct{}

// NewGeminiAdapter builds the Gemini adapter.
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{}
}

func (a *GeminiAdapter) Kind() provider.Kind {
	return provider.KindGemini
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

// BuildRequest maps the transcript onto a generateContent request. The
// system prompt moves to systemInstruction, assistant turns become role
// "model", and attachments are dropped since the text endpoint takes none.
func (a *GeminiAdapter) BuildRequest(params RequestParams) (any, error) {
	request := geminiRequest{}

	for _, p := range params.Transcript.Prompts {
		if p.Role == prompt.RoleSystem {
			request.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.Text}}}
			continue
		}
		role := "user"
		if p.Role == prompt.RoleAssistant {
			role = "model"
		}
		request.Contents = append(request.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: p.Text}},
		})
	}

	if params.Temperature != nil || params.MaxTokens > 0 {
		request.GenerationConfig = &geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
		}
	}
	return request, nil
}

// OpenStream opens the streamGenerateContent endpoint with array framing.
func (a *GeminiAdapter) OpenStream(ctx context.Context, settings *provider.Settings, params RequestParams) (*Stream, error) {
	body, err := a.BuildRequest(params)
	if err != nil {
		return nil, err
	}
	client := newVendorClient(settings)
	path := fmt.Sprintf("/models/%s:streamGenerateContent", params.Model)
	return openVendorStream(ctx, client, path, body, FramingJSONArray)
}

type geminiStreamChunk struct {
	ResponseID string `json:"responseId"`
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one array element. Gemini has no terminal sentinel:
// the chunk carrying a finishReason is the terminal marker and may still
// carry trailing text and usage, which travel on the Done event.
func (a *GeminiAdapter) ParseEvent(payload string) llmstream.Event {
	data := strings.TrimSpace(payload)
	if data == "" || !strings.HasPrefix(data, "{") {
		return llmstream.None()
	}

	var chunk geminiStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return llmstream.None()
	}
	if chunk.Error != nil {
		return llmstream.ErrorEvent(chunk.Error.Status, chunk.Error.Message)
	}

	var usage *llmstream.Usage
	if chunk.UsageMetadata != nil {
		usage = &llmstream.Usage{
			RequestID:    chunk.ResponseID,
			InputTokens:  chunk.UsageMetadata.PromptTokenCount,
			OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  chunk.UsageMetadata.TotalTokenCount,
		}
	}

	var text strings.Builder
	finished := false
	for _, candidate := range chunk.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		if candidate.FinishReason != "" {
			finished = true
		}
	}

	switch {
	case finished:
		event := llmstream.Done()
		event.RequestID = chunk.ResponseID
		event.Text = text.String()
		event.Usage = usage
		return event
	case text.Len() > 0:
		event := llmstream.TextDelta(text.String(), chunk.ResponseID)
		event.Usage = usage
		return event
	case usage != nil:
		return llmstream.Event{Kind: llmstream.KindUsage, RequestID: chunk.ResponseID, Usage: usage}
	default:
		return llmstream.None()
	}
}

// GetTitle runs a small non-streaming generateContent call.
func (a *GeminiAdapter) GetTitle(ctx context.Context, settings *provider.Settings, userText string) (string, error) {
	model, err := titleModelFor(ctx, settings)
	if err != nil {
		return "", err
	}

	request := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: titleInstruction}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userText}}},
		},
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: titleMaxTokens},
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []geminiPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&response).
		Post(fmt.Sprintf("/models/%s:generateContent", model))
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"title request failed", err, "9d0e1f2a-3b4c-4d5e-8f6a-7b8c9d0e1f2a")
	}
	if resp.IsError() {
		return "", errorFromResponse(ctx, resp, "title request failed")
	}
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return strings.Trim(strings.TrimSpace(part.Text), `"`), nil
			}
		}
	}
	return "", nil
}

// ListModels fetches the vendor's model catalog.
func (a *GeminiAdapter) ListModels(ctx context.Context, settings *provider.Settings) ([]Model, error) {
	var response struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	client := newVendorClient(settings)
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/models")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"list models failed", err, "0e1f2a3b-4c5d-4e6f-8a7b-8c9d0e1f2a3b")
	}
	if resp.IsError() {
		return nil, errorFromResponse(ctx, resp, "list models failed")
	}

	models := make([]Model, 0, len(response.Models))
	for _, item := range response.Models {
		id := strings.TrimPrefix(item.Name, "models/")
		name := item.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, Model{ID: id, DisplayName: name, Provider: provider.KindGemini})
	}
	return models, nil
}
