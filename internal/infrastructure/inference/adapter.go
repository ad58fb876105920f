package inference

import (
	"context"
	"fmt"
	"io"
	"strings"

	"resty.dev/v3"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/utils/httpclients"
	"parley-server/internal/utils/platformerrors"
)

// RequestParams is the vendor-agnostic description of one upstream call.
type RequestParams struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	Transcript  prompt.Transcript
	EnableTools bool
}

// Model is one entry of a vendor's model catalog.
type Model struct {
	ID          string
	DisplayName string
	Provider    provider.Kind
}

// Adapter translates between the gateway's canonical shapes and one vendor's
// wire protocol. BuildRequest and ParseEvent are pure; OpenStream, GetTitle
// and ListModels perform network calls against the resolved settings.
type Adapter interface {
	Kind() provider.Kind
	// BuildRequest produces the vendor request body for a streaming call.
	BuildRequest(params RequestParams) (any, error)
	// OpenStream opens the vendor's streaming endpoint and returns the raw
	// payload source. Failure here means no stream was opened.
	OpenStream(ctx context.Context, settings *provider.Settings, params RequestParams) (*Stream, error)
	// ParseEvent converts one raw payload into a canonical event; malformed
	// or unrecognized input yields KindNone, never an error.
	ParseEvent(payload string) llmstream.Event
	// GetTitle runs a low-token auxiliary completion to name a conversation.
	GetTitle(ctx context.Context, settings *provider.Settings, userText string) (string, error)
	// ListModels fetches the vendor's model catalog.
	ListModels(ctx context.Context, settings *provider.Settings) ([]Model, error)
}

// Registry dispatches to the adapter registered for a provider kind.
type Registry struct {
	adapters map[provider.Kind]Adapter
}

// NewRegistry builds the registry with every vendor adapter installed.
func NewRegistry() *Registry {
	registry := &Registry{adapters: map[provider.Kind]Adapter{}}
	for _, adapter := range []Adapter{
		NewOpenAIAdapter(),
		NewAnthropicAdapter(),
		NewGeminiAdapter(),
		NewGroqAdapter(),
	} {
		registry.adapters[adapter.Kind()] = adapter
	}
	return registry
}

// Adapter returns the adapter for a provider kind.
func (r *Registry) Adapter(ctx context.Context, kind provider.Kind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("no adapter for provider: %s", kind), nil, "8e9f0a1b-2c3d-4e5f-8a6b-7c8d9e0f1a2b")
	}
	return adapter, nil
}

const (
	titleInstruction = "Generate a concise title, at most six words, for a conversation that starts with the following message. Reply with the title only."
	titleMaxTokens   = 100
)

// titleModelFor picks the model used for auxiliary title calls: the
// configured title model, falling back to the first allow-listed one.
func titleModelFor(ctx context.Context, settings *provider.Settings) (string, error) {
	if settings.TitleModel != "" {
		return settings.TitleModel, nil
	}
	if len(settings.AllowedModels) > 0 {
		return settings.AllowedModels[0], nil
	}
	return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
		fmt.Sprintf("no title model configured for provider: %s", settings.Kind), nil, "5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d")
}

// newVendorClient builds a resty client authenticated for the vendor.
// Header scheme varies per vendor the way their APIs require.
func newVendorClient(settings *provider.Settings) *resty.Client {
	client := httpclients.NewClient(fmt.Sprintf("%sClient", settings.Kind))
	client.SetBaseURL(settings.BaseURL)

	apiKey := strings.TrimSpace(settings.APIKey)
	if apiKey == "" || strings.EqualFold(apiKey, "none") {
		return client
	}

	switch settings.Kind {
	case provider.KindAnthropic:
		client.SetHeader("X-API-Key", apiKey)
		client.SetHeader("Anthropic-Version", "2023-06-01")
	case provider.KindGemini:
		client.SetHeader("X-Goog-Api-Key", apiKey)
	default:
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}
	return client
}

func errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			message, nil, "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d")
	}
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil, "1b2c3d4e-5f6a-4b7c-8d8e-9f0a1b2c3d4e")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil, "9c0d1e2f-3a4b-4c5d-8e6f-7a8b9c0d1e2f")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
		fmt.Sprintf("%s: status %d: %s", message, resp.StatusCode(), trimmed), nil, "2c3d4e5f-6a7b-4c8d-8e9f-0a1b2c3d4e5f")
}

// openVendorStream performs a streaming POST and wraps the body.
func openVendorStream(ctx context.Context, client *resty.Client, path string, body any, framing Framing) (*Stream, error) {
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetDoNotParseResponse(true)

	if req.Header.Get("Accept-Encoding") == "" {
		req.SetHeader("Accept-Encoding", "identity")
	}

	resp, err := req.Post(path)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"unable to open upstream stream", err, "3d4e5f6a-7b8c-4d9e-8f0a-1b2c3d4e5f6a")
	}
	if resp.IsError() {
		defer resp.RawResponse.Body.Close()
		return nil, errorFromResponse(ctx, resp, "upstream stream request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"upstream stream request failed: empty response body", nil, "4e5f6a7b-8c9d-4e0f-8a1b-2c3d4e5f6a7b")
	}

	return NewStream(resp.RawResponse.Body, framing), nil
}
