package inference

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
)

func TestOpenAIParseTextDelta(t *testing.T) {
	adapter := NewOpenAIAdapter()

	event := adapter.ParseEvent(`{"choices":[{"delta":{"content":"Hi"}}]}`)
	assert.Equal(t, llmstream.KindTextDelta, event.Kind)
	assert.Equal(t, "Hi", event.Text)
}

func TestOpenAIParseUsageChunk(t *testing.T) {
	adapter := NewOpenAIAdapter()

	event := adapter.ParseEvent(`{"id":"chatcmpl-1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	require.Equal(t, llmstream.KindUsage, event.Kind)
	require.NotNil(t, event.Usage)
	assert.Equal(t, 5, event.Usage.InputTokens)
	assert.Equal(t, 2, event.Usage.OutputTokens)
	assert.Equal(t, 7, event.Usage.TotalTokens)
	assert.Equal(t, "chatcmpl-1", event.Usage.RequestID)
}

func TestOpenAIParseDoneMarker(t *testing.T) {
	adapter := NewOpenAIAdapter()

	assert.Equal(t, llmstream.KindDone, adapter.ParseEvent("[DONE]").Kind)
	assert.Equal(t, llmstream.KindDone, adapter.ParseEvent(" [DONE] ").Kind)
}

func TestOpenAIParseMessageStart(t *testing.T) {
	adapter := NewOpenAIAdapter()

	event := adapter.ParseEvent(`{"id":"chatcmpl-9","choices":[{"delta":{"role":"assistant"}}]}`)
	assert.Equal(t, llmstream.KindMessageStart, event.Kind)
	assert.Equal(t, "chatcmpl-9", event.RequestID)
}

func TestOpenAIParseResponsesFlavor(t *testing.T) {
	adapter := NewOpenAIAdapter()

	created := adapter.ParseEvent(`{"type":"response.created","response":{"id":"resp_1"}}`)
	assert.Equal(t, llmstream.KindMessageStart, created.Kind)
	assert.Equal(t, "resp_1", created.RequestID)

	delta := adapter.ParseEvent(`{"type":"response.output_text.delta","delta":"Hello"}`)
	assert.Equal(t, llmstream.KindTextDelta, delta.Kind)
	assert.Equal(t, "Hello", delta.Text)

	completed := adapter.ParseEvent(`{"type":"response.completed","response":{"id":"resp_1","usage":{"input_tokens":10,"output_tokens":4,"total_tokens":14}}}`)
	require.Equal(t, llmstream.KindDone, completed.Kind)
	require.NotNil(t, completed.Usage)
	assert.Equal(t, 14, completed.Usage.TotalTokens)
}

func TestOpenAIParseErrorEvent(t *testing.T) {
	adapter := NewOpenAIAdapter()

	event := adapter.ParseEvent(`{"error":{"type":"overloaded","message":"try later"}}`)
	require.Equal(t, llmstream.KindError, event.Kind)
	require.NotNil(t, event.Err)
	assert.Equal(t, "overloaded", event.Err.Code)
	assert.Equal(t, "try later", event.Err.Message)
}

func TestOpenAIParseTotality(t *testing.T) {
	adapter := NewOpenAIAdapter()

	for _, raw := range []string{
		"", "   ", "not json", "{", `{"choices":`, `{"unknown":true}`,
		`{"choices":[{"delta":{}}]}`, `[1,2,3]`, ": keep-alive",
		`{"type":"response.in_progress"}`, "\x00\xff",
	} {
		event := adapter.ParseEvent(raw)
		assert.Equal(t, llmstream.KindNone, event.Kind, "payload %q", raw)
	}
}

func TestOpenAIBuildRequestInlineSystem(t *testing.T) {
	adapter := NewOpenAIAdapter()
	temperature := float32(0.7)

	transcript := prompt.NewBuilder().
		WithSystem("be brief").
		Append(prompt.RoleUser, "hello").
		Append(prompt.RoleAssistant, "hi").
		Append(prompt.RoleUser, "again").
		Build()

	body, err := adapter.BuildRequest(RequestParams{
		Model:       "gpt-4o",
		Temperature: &temperature,
		MaxTokens:   256,
		Transcript:  transcript,
	})
	require.NoError(t, err)

	request, ok := body.(openai.ChatCompletionRequest)
	require.True(t, ok)
	assert.True(t, request.Stream)
	require.NotNil(t, request.StreamOptions)
	assert.True(t, request.StreamOptions.IncludeUsage)
	require.Len(t, request.Messages, 4)
	assert.Equal(t, "system", request.Messages[0].Role)
	assert.Equal(t, "be brief", request.Messages[0].Content)
	assert.Equal(t, "user", request.Messages[3].Role)
}

func TestOpenAIBuildRequestImageAttachment(t *testing.T) {
	adapter := NewOpenAIAdapter()

	transcript := prompt.NewBuilder().
		Append(prompt.RoleUser, "what is this?", prompt.File{
			ID:       "file_1",
			MimeType: "image/png",
			Data:     []byte{0x89, 0x50, 0x4e, 0x47},
		}).
		Build()

	body, err := adapter.BuildRequest(RequestParams{Model: "gpt-4o", Transcript: transcript})
	require.NoError(t, err)

	request := body.(openai.ChatCompletionRequest)
	require.Len(t, request.Messages, 1)
	require.Len(t, request.Messages[0].MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, request.Messages[0].MultiContent[0].Type)
	image := request.Messages[0].MultiContent[1]
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, image.Type)
	require.NotNil(t, image.ImageURL)
	assert.Contains(t, image.ImageURL.URL, "data:image/png;base64,")
}

func TestOpenAIBuildRequestFileAttachment(t *testing.T) {
	adapter := NewOpenAIAdapter()

	transcript := prompt.NewBuilder().
		Append(prompt.RoleUser, "summarize this", prompt.File{
			ID:           "file_1",
			MimeType:     "application/pdf",
			VendorFileID: "file-vendor-123",
		}).
		Build()

	body, err := adapter.BuildRequest(RequestParams{Model: "gpt-4o", Transcript: transcript})
	require.NoError(t, err)

	request, ok := body.(openAIRawRequest)
	require.True(t, ok)
	assert.True(t, request.Stream)
	require.NotNil(t, request.StreamOptions)
	assert.True(t, request.StreamOptions.IncludeUsage)
	require.Len(t, request.Messages, 1)

	parts, ok := request.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	text := parts[0].(openai.ChatMessagePart)
	assert.Equal(t, openai.ChatMessagePartTypeText, text.Type)
	assert.Equal(t, "summarize this", text.Text)
	filePart := parts[1].(openAIFilePart)
	assert.Equal(t, "file", filePart.Type)
	assert.Equal(t, "file-vendor-123", filePart.File.FileID)
}

func TestGroqIgnoresAttachments(t *testing.T) {
	adapter := NewGroqAdapter()

	transcript := prompt.NewBuilder().
		Append(prompt.RoleUser, "plain text", prompt.File{ID: "file_1", MimeType: "image/png", Data: []byte{1}}).
		Build()

	body, err := adapter.BuildRequest(RequestParams{Model: "llama-3.3-70b-versatile", Transcript: transcript})
	require.NoError(t, err)

	request := body.(openai.ChatCompletionRequest)
	require.Len(t, request.Messages, 1)
	assert.Equal(t, "plain text", request.Messages[0].Content)
	assert.Empty(t, request.Messages[0].MultiContent)
}

func TestGroqSharesOpenAIWireParsing(t *testing.T) {
	adapter := NewGroqAdapter()

	event := adapter.ParseEvent(`{"choices":[{"delta":{"content":"Hi"}}]}`)
	assert.Equal(t, llmstream.KindTextDelta, event.Kind)
	assert.Equal(t, "Hi", event.Text)
	assert.Equal(t, llmstream.KindDone, adapter.ParseEvent("[DONE]").Kind)
}
