package chathandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatresponses "parley-server/internal/interfaces/httpserver/responses/chat"
	"parley-server/internal/utils/platformerrors"
)

func newTestEmitter() (*sseEmitter, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	return newSSEEmitter(c), recorder
}

func TestSSEEmitterStreamsChunksAndMetadata(t *testing.T) {
	emitter, recorder := newTestEmitter()

	require.NoError(t, emitter.Chunk("Hel"))
	require.NoError(t, emitter.Chunk("lo"))
	require.NoError(t, emitter.Done())

	emitter.finish(&chatresponses.TurnMetadata{
		Object:         "chat.turn.metadata",
		ConversationID: "conv_abc",
	})

	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	body := recorder.Body.String()
	assert.Contains(t, body, "event: chunk\ndata: {\"object\":\"chat.turn.delta\",\"delta\":\"Hel\"}\n\n")
	assert.Contains(t, body, "event: chunk\ndata: {\"object\":\"chat.turn.delta\",\"delta\":\"lo\"}\n\n")
	assert.Contains(t, body, `"conversation_id":"conv_abc"`)
	assert.True(t, len(body) > 0 && body[len(body)-2:] == "\n\n")
	assert.Contains(t, body, "data: [DONE]")
}

func TestSSEEmitterErrorBeforeFirstByteWritesNothing(t *testing.T) {
	emitter, recorder := newTestEmitter()

	require.NoError(t, emitter.Error(errors.New("upstream refused")))

	assert.False(t, emitter.started)
	assert.Empty(t, recorder.Body.String())
}

func TestSSEEmitterErrorMidStreamEmitsErrorEvent(t *testing.T) {
	emitter, recorder := newTestEmitter()

	require.NoError(t, emitter.Chunk("partial"))

	failure := platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
		platformerrors.ErrorTypeExternal, "vendor stream dropped", nil,
		"00000000-0000-4000-8000-000000000001")
	require.NoError(t, emitter.Error(failure))

	body := recorder.Body.String()
	assert.Contains(t, body, `"object":"chat.turn.error"`)
	assert.Contains(t, body, "vendor stream dropped")
	assert.Contains(t, body, "data: [DONE]")
}
