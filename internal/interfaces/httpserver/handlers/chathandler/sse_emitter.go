package chathandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/utils/platformerrors"
)

// chunkEvent is one streamed text delta.
type chunkEvent struct {
	Object string `json:"object"`
	Delta  string `json:"delta"`
}

// streamError is the SSE error event payload for failures after the first
// byte has gone out.
type streamError struct {
	Object  string `json:"object"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sseEmitter relays turn events onto a gin response as server-sent events.
// Headers go out lazily with the first chunk so pre-stream failures can still
// become ordinary JSON errors. The orchestrator's Done fires before the
// caller has the turn result, so the emitter only notes it and the handler
// writes the trailing metadata event and terminal marker via finish.
type sseEmitter struct {
	reqCtx   *gin.Context
	flusher  http.Flusher
	started  bool
	doneSeen bool
}

func newSSEEmitter(reqCtx *gin.Context) *sseEmitter {
	return &sseEmitter{reqCtx: reqCtx}
}

func (e *sseEmitter) Chunk(text string) error {
	if err := e.start(); err != nil {
		return err
	}
	return e.writeEvent("chunk", chunkEvent{Object: "chat.turn.delta", Delta: text})
}

func (e *sseEmitter) Done() error {
	e.doneSeen = true
	return nil
}

func (e *sseEmitter) Error(failure error) error {
	if !e.started {
		// Nothing written yet: the handler turns this into a JSON error.
		return nil
	}
	event := streamError{Object: "chat.turn.error", Code: string(platformerrors.ErrorTypeExternal), Message: "stream failed"}
	var platformErr *platformerrors.PlatformError
	if errors.As(failure, &platformErr) {
		event.Code = string(platformErr.GetErrorType())
		event.Message = platformErr.Message
	}
	if err := e.writeData(event); err != nil {
		return err
	}
	return e.terminate()
}

// finish writes the trailing metadata event and the terminal marker. Called
// by the handler once the turn result is known.
func (e *sseEmitter) finish(metadata any) {
	if err := e.start(); err != nil {
		return
	}
	_ = e.writeData(metadata)
	_ = e.terminate()
}

func (e *sseEmitter) start() error {
	if e.started {
		return nil
	}
	flusher, ok := middlewares.PrepareSSE(e.reqCtx)
	if !ok {
		return fmt.Errorf("response writer does not support flushing")
	}
	e.flusher = flusher
	e.started = true
	return nil
}

// writeEvent emits a named SSE event; deltas go out as "chunk" events so
// clients can subscribe to them directly.
func (e *sseEmitter) writeEvent(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(e.reqCtx.Writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *sseEmitter) writeData(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(e.reqCtx.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *sseEmitter) terminate() error {
	if _, err := fmt.Fprint(e.reqCtx.Writer, "data: [DONE]\n\n"); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
