package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderOrdering(t *testing.T) {
	transcript := NewBuilder().
		WithSystem("be brief").
		Append(RoleUser, "hello").
		Append(RoleAssistant, "hi there").
		Append(RoleUser, "what is 2+2?").
		Build()

	require.Len(t, transcript.Prompts, 4)
	assert.Equal(t, RoleSystem, transcript.Prompts[0].Role)
	assert.Equal(t, "be brief", transcript.Prompts[0].Text)
	assert.Equal(t, RoleUser, transcript.Prompts[1].Role)
	assert.Equal(t, RoleAssistant, transcript.Prompts[2].Role)
	assert.Equal(t, RoleUser, transcript.Prompts[3].Role)
	assert.Equal(t, "what is 2+2?", transcript.Prompts[3].Text)
}

func TestBuilderNoSystem(t *testing.T) {
	transcript := NewBuilder().
		Append(RoleUser, "hello").
		Build()

	require.Len(t, transcript.Prompts, 1)
	assert.Equal(t, RoleUser, transcript.Prompts[0].Role)
}

func TestBuilderFiles(t *testing.T) {
	file := File{ID: "file_abc", MimeType: "image/png", Data: []byte{0x89, 0x50}}
	transcript := NewBuilder().
		Append(RoleUser, "describe this", file).
		Build()

	require.Len(t, transcript.Prompts, 1)
	require.Len(t, transcript.Prompts[0].Files, 1)
	assert.Equal(t, "file_abc", transcript.Prompts[0].Files[0].ID)
	assert.Equal(t, "image/png", transcript.Prompts[0].Files[0].MimeType)
}

func TestLastUserText(t *testing.T) {
	transcript := NewBuilder().
		WithSystem("sys").
		Append(RoleUser, "first").
		Append(RoleAssistant, "answer").
		Append(RoleUser, "second").
		Build()

	assert.Equal(t, "second", transcript.LastUserText())

	empty := NewBuilder().Build()
	assert.Equal(t, "", empty.LastUserText())
}
