package chathandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"parley-server/internal/domain/provider"
	"parley-server/internal/domain/turn"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/infrastructure/observability"
	"parley-server/internal/interfaces/httpserver/middlewares"
	chatrequests "parley-server/internal/interfaces/httpserver/requests/chat"
	"parley-server/internal/interfaces/httpserver/responses"
	chatresponses "parley-server/internal/interfaces/httpserver/responses/chat"
	"parley-server/internal/utils/platformerrors"
)

// ChatHandler runs chat turns over the single conversation-aware entry
// point, streaming or not.
type ChatHandler struct {
	turns     *turn.Service
	providers *provider.Registry
}

// NewChatHandler creates a new chat handler
func NewChatHandler(turns *turn.Service, providers *provider.Registry) *ChatHandler {
	return &ChatHandler{turns: turns, providers: providers}
}

// CreateTurn handles POST /v1/chat.
func (h *ChatHandler) CreateTurn(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	userID := middlewares.GetUserIDFromContext(reqCtx)
	if userID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized,
			"authentication required", "4c6e8a0b-2d3f-4a5b-8c7d-9e0f1a2b3c4e")
		return
	}

	var request chatrequests.ChatRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"invalid request body", "8a0b2c4d-6e7f-4a8b-8c9d-0e1f2a3b4c5d")
		return
	}
	if strings.TrimSpace(request.Model) == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"model is required", "2e4f6a8b-0c1d-4e2f-8a3b-4c5d6e7f8a9d")
		return
	}

	kind, err := h.resolveKind(reqCtx, request.Provider, request.Model)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to resolve provider")
		return
	}

	observability.AddSpanAttributes(ctx,
		attribute.String("chat.provider", string(kind)),
		attribute.String("chat.model", request.Model),
		attribute.Bool("chat.stream", request.Stream),
	)

	params := turn.Params{
		UserID:         userID,
		ConversationID: request.ConversationID,
		Provider:       kind,
		Model:          request.Model,
		Text:           request.Text,
		SystemPrompt:   request.SystemPrompt,
		FileIDs:        request.FileIDs,
		Temperature:    request.Temperature,
		MaxTokens:      request.MaxTokens,
	}

	h.run(reqCtx, request.Stream, request.Model, string(kind), func(emitter turn.Emitter) (*turn.Result, error) {
		return h.turns.RunTurn(ctx, emitter, params)
	})
}

// Regenerate handles POST /v1/conversations/:conv_public_id/regenerate.
func (h *ChatHandler) Regenerate(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	userID := middlewares.GetUserIDFromContext(reqCtx)
	if userID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized,
			"authentication required", "6a8b0c2d-4e5f-4a6b-8c7d-8e9f0a1b2c3d")
		return
	}

	conversationID := reqCtx.Param("conv_public_id")

	var request chatrequests.RegenerateRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"invalid request body", "0c2d4e6f-8a9b-4c0d-8e1f-2a3b4c5d6e7f")
		return
	}
	if strings.TrimSpace(request.AnchorMessageID) == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"anchor_message_id is required", "4e6f8a0b-2c3d-4e4f-8a5b-6c7d8e9f0a1b")
		return
	}

	params := turn.RegenerateParams{
		UserID:          userID,
		ConversationID:  conversationID,
		AnchorMessageID: request.AnchorMessageID,
		Text:            request.Text,
		Temperature:     request.Temperature,
		MaxTokens:       request.MaxTokens,
	}

	h.run(reqCtx, request.Stream, "", "", func(emitter turn.Emitter) (*turn.Result, error) {
		return h.turns.Regenerate(ctx, emitter, params)
	})
}

// resolveKind maps the optional provider field to a provider kind, falling
// back to the first enabled provider that allow-lists the model.
func (h *ChatHandler) resolveKind(reqCtx *gin.Context, providerKey, model string) (provider.Kind, error) {
	ctx := reqCtx.Request.Context()
	if providerKey != "" {
		kind, ok := provider.ParseKind(providerKey)
		if !ok {
			return "", platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
				"unknown provider: "+providerKey, nil, "8a0b2c4e-6d7e-4f8a-8b9c-0d1e2f3a4b5d")
		}
		return kind, nil
	}
	settings, err := h.providers.ResolveForModel(ctx, model)
	if err != nil {
		return "", err
	}
	return settings.Kind, nil
}

// run executes one turn against either the SSE emitter or a silent one for
// non-streaming requests.
func (h *ChatHandler) run(reqCtx *gin.Context, stream bool, model, providerKey string, fn func(turn.Emitter) (*turn.Result, error)) {
	start := time.Now()

	if model != "" {
		metrics.IncrementActiveStreams(model)
		defer metrics.DecrementActiveStreams(model)
	}

	if !stream {
		result, err := fn(nil)
		h.recordTurn(result, err, providerKey, model, start)
		if err != nil {
			responses.HandleError(reqCtx, err, "chat turn failed")
			return
		}
		reqCtx.JSON(http.StatusOK, chatresponses.NewTurnResponse(result))
		return
	}

	emitter := newSSEEmitter(reqCtx)
	result, err := fn(emitter)
	h.recordTurn(result, err, providerKey, model, start)
	if err != nil {
		// Before the first byte the failure is an ordinary HTTP error.
		// After it, the error event already went out on the stream.
		if !emitter.started {
			responses.HandleError(reqCtx, err, "chat turn failed")
		}
		return
	}
	emitter.finish(chatresponses.NewTurnMetadata(result))
}

func (h *ChatHandler) recordTurn(result *turn.Result, turnErr error, providerKey, model string, start time.Time) {
	if result == nil {
		return
	}
	if result.Conversation != nil {
		if providerKey == "" {
			providerKey = result.Conversation.Provider
		}
		if model == "" {
			model = result.Conversation.Model
		}
	}
	metrics.RecordTurn(providerKey, model, string(result.State), time.Since(start).Seconds())
	if result.State == turn.StateCompleted {
		metrics.RecordTokens(model, providerKey, result.Usage.InputTokens, result.Usage.OutputTokens)
	}
	if turnErr != nil && platformerrors.IsErrorType(turnErr, platformerrors.ErrorTypeExternal) {
		metrics.RecordUpstreamError(providerKey, string(platformerrors.ErrorTypeExternal))
	}
}
