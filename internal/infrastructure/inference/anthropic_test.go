package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
)

func TestAnthropicParseContentBlockDelta(t *testing.T) {
	adapter := NewAnthropicAdapter()

	event := adapter.ParseEvent(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)
	assert.Equal(t, llmstream.KindTextDelta, event.Kind)
	assert.Equal(t, "Hello", event.Text)
}

func TestAnthropicParseMessageStop(t *testing.T) {
	adapter := NewAnthropicAdapter()

	event := adapter.ParseEvent(`{"type":"message_stop"}`)
	assert.Equal(t, llmstream.KindDone, event.Kind)
	assert.Empty(t, event.Text, "terminal marker must not emit text")
}

func TestAnthropicParseMessageStart(t *testing.T) {
	adapter := NewAnthropicAdapter()

	event := adapter.ParseEvent(`{"type":"message_start","message":{"id":"msg_01","usage":{"input_tokens":12}}}`)
	require.Equal(t, llmstream.KindMessageStart, event.Kind)
	assert.Equal(t, "msg_01", event.RequestID)
	require.NotNil(t, event.Usage)
	assert.Equal(t, 12, event.Usage.InputTokens)
}

func TestAnthropicParseMessageDeltaUsage(t *testing.T) {
	adapter := NewAnthropicAdapter()

	event := adapter.ParseEvent(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":42}}`)
	require.Equal(t, llmstream.KindUsage, event.Kind)
	require.NotNil(t, event.Usage)
	assert.Equal(t, 42, event.Usage.OutputTokens)
}

func TestAnthropicParseErrorEvent(t *testing.T) {
	adapter := NewAnthropicAdapter()

	event := adapter.ParseEvent(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	require.Equal(t, llmstream.KindError, event.Kind)
	require.NotNil(t, event.Err)
	assert.Equal(t, "overloaded_error", event.Err.Code)
}

func TestAnthropicParseTotality(t *testing.T) {
	adapter := NewAnthropicAdapter()

	for _, raw := range []string{
		"", "garbage", `{"type":"ping"}`, `{"type":"content_block_start","index":0}`,
		`{"type":"content_block_stop","index":0}`, `{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`,
		"{", `{"type":123}`,
	} {
		event := adapter.ParseEvent(raw)
		assert.Equal(t, llmstream.KindNone, event.Kind, "payload %q", raw)
	}
}

func TestAnthropicBuildRequestSystemSlot(t *testing.T) {
	adapter := NewAnthropicAdapter()

	transcript := prompt.NewBuilder().
		WithSystem("be helpful").
		Append(prompt.RoleUser, "hello").
		Append(prompt.RoleAssistant, "hi").
		Build()

	body, err := adapter.BuildRequest(RequestParams{Model: "claude-sonnet-4-20250514", Transcript: transcript})
	require.NoError(t, err)

	request, ok := body.(anthropicRequest)
	require.True(t, ok)
	assert.Equal(t, "be helpful", request.System)
	assert.Equal(t, anthropicDefaultMaxTokens, request.MaxTokens)
	assert.True(t, request.Stream)
	require.Len(t, request.Messages, 2)
	assert.Equal(t, "user", request.Messages[0].Role)
	assert.Equal(t, "hello", request.Messages[0].Content[0].Text)
}

func TestAnthropicBuildRequestAttachmentBlocks(t *testing.T) {
	adapter := NewAnthropicAdapter()

	transcript := prompt.NewBuilder().
		Append(prompt.RoleUser, "look at these",
			prompt.File{ID: "f1", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}},
			prompt.File{ID: "f2", MimeType: "application/pdf", Data: []byte("%PDF")},
			prompt.File{ID: "f3", MimeType: "audio/mp3", Data: []byte{1}},
		).
		Build()

	body, err := adapter.BuildRequest(RequestParams{Model: "claude-sonnet-4-20250514", Transcript: transcript})
	require.NoError(t, err)

	request := body.(anthropicRequest)
	require.Len(t, request.Messages, 1)
	blocks := request.Messages[0].Content
	// text + image + document; unsupported audio type dropped
	require.Len(t, blocks, 3)
	assert.Equal(t, "text", blocks[0].Type)
	assert.Equal(t, "image", blocks[1].Type)
	require.NotNil(t, blocks[1].Source)
	assert.Equal(t, "image/jpeg", blocks[1].Source.MediaType)
	assert.Equal(t, "document", blocks[2].Type)
}
