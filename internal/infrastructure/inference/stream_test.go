package inference

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/provider"
)

func readCloser(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestStreamSSEFraming(t *testing.T) {
	body := "event: message\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		": keep-alive comment\n" +
		"data: [DONE]\n"
	stream := NewStream(readCloser(body), FramingSSE)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, first)

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", second)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamJSONArrayFraming(t *testing.T) {
	body := "[{\"n\":1}\n" +
		",{\"n\":2}\n" +
		",{\"n\":3}]\n"
	stream := NewStream(readCloser(body), FramingJSONArray)

	var payloads []string
	for {
		payload, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		payloads = append(payloads, payload)
	}
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, payloads)
}

func TestStreamJSONArrayEmptyStream(t *testing.T) {
	stream := NewStream(readCloser("[]\n"), FramingJSONArray)
	_, err := stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamCloseStopsRecv(t *testing.T) {
	stream := NewStream(readCloser("data: {\"a\":1}\n"), FramingSSE)
	require.NoError(t, stream.Close())
	_, err := stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	for _, kind := range provider.Kinds() {
		adapter, err := registry.Adapter(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, kind, adapter.Kind())
	}

	_, err := registry.Adapter(ctx, provider.Kind("mystery"))
	assert.Error(t, err)
}
