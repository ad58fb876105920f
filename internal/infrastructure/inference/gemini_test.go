package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
)

func TestGeminiParseTextChunk(t *testing.T) {
	adapter := NewGeminiAdapter()

	event := adapter.ParseEvent(`{"candidates":[{"content":{"parts":[{"text":"Hello"}],"role":"model"}}]}`)
	assert.Equal(t, llmstream.KindTextDelta, event.Kind)
	assert.Equal(t, "Hello", event.Text)
}

func TestGeminiParseFinishChunkCarriesTrailingText(t *testing.T) {
	adapter := NewGeminiAdapter()

	event := adapter.ParseEvent(`{"responseId":"r1","candidates":[{"content":{"parts":[{"text":" world"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":8,"candidatesTokenCount":3,"totalTokenCount":11}}`)
	require.Equal(t, llmstream.KindDone, event.Kind)
	assert.Equal(t, " world", event.Text)
	require.NotNil(t, event.Usage)
	assert.Equal(t, 8, event.Usage.InputTokens)
	assert.Equal(t, 3, event.Usage.OutputTokens)
	assert.Equal(t, 11, event.Usage.TotalTokens)
}

func TestGeminiParseErrorPayload(t *testing.T) {
	adapter := NewGeminiAdapter()

	event := adapter.ParseEvent(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`)
	require.Equal(t, llmstream.KindError, event.Kind)
	require.NotNil(t, event.Err)
	assert.Equal(t, "RESOURCE_EXHAUSTED", event.Err.Code)
}

func TestGeminiParseTotality(t *testing.T) {
	adapter := NewGeminiAdapter()

	for _, raw := range []string{
		"", "[", "]", ",", "nonsense", `{"candidates":[]}`, "{",
		`{"candidates":[{"content":{"parts":[]}}]}`,
	} {
		event := adapter.ParseEvent(raw)
		assert.Equal(t, llmstream.KindNone, event.Kind, "payload %q", raw)
	}
}

func TestGeminiArrayFramingMatchesUnwrappedObject(t *testing.T) {
	adapter := NewGeminiAdapter()
	payload := `{"candidates":[{"content":{"parts":[{"text":"Hi"}]}}]}`

	stream := NewStream(readCloser(","+payload), FramingJSONArray)
	framed, err := stream.Recv()
	require.NoError(t, err)

	direct := adapter.ParseEvent(payload)
	viaFraming := adapter.ParseEvent(framed)
	assert.Equal(t, direct, viaFraming)
	assert.Equal(t, llmstream.KindTextDelta, viaFraming.Kind)
	assert.Equal(t, "Hi", viaFraming.Text)
}

func TestGeminiBuildRequestSystemInstruction(t *testing.T) {
	adapter := NewGeminiAdapter()
	temperature := float32(0.2)

	transcript := prompt.NewBuilder().
		WithSystem("answer in French").
		Append(prompt.RoleUser, "hello", prompt.File{ID: "f1", MimeType: "image/png", Data: []byte{1}}).
		Append(prompt.RoleAssistant, "bonjour").
		Build()

	body, err := adapter.BuildRequest(RequestParams{
		Model:       "gemini-2.0-flash",
		Temperature: &temperature,
		MaxTokens:   512,
		Transcript:  transcript,
	})
	require.NoError(t, err)

	request, ok := body.(geminiRequest)
	require.True(t, ok)
	require.NotNil(t, request.SystemInstruction)
	assert.Equal(t, "answer in French", request.SystemInstruction.Parts[0].Text)
	require.Len(t, request.Contents, 2)
	assert.Equal(t, "user", request.Contents[0].Role)
	assert.Equal(t, "model", request.Contents[1].Role)
	// attachments degrade to text-only parts
	require.Len(t, request.Contents[0].Parts, 1)
	require.NotNil(t, request.GenerationConfig)
	assert.Equal(t, 512, request.GenerationConfig.MaxOutputTokens)
}
