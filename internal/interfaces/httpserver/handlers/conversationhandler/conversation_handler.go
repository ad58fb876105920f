package conversationhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/interfaces/httpserver/middlewares"
	conversationrequests "parley-server/internal/interfaces/httpserver/requests/conversation"
	"parley-server/internal/interfaces/httpserver/responses"
	conversationresponses "parley-server/internal/interfaces/httpserver/responses/conversation"
	"parley-server/internal/utils/platformerrors"
)

// ConversationHandler serves the conversation management surface. New
// conversations come into existence through the chat endpoint; this handler
// only reads and mutates existing ones.
type ConversationHandler struct {
	conversations *conversation.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *conversation.Service) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// ListConversations handles GET /v1/conversations.
func (h *ConversationHandler) ListConversations(reqCtx *gin.Context) {
	userID, ok := h.requireUser(reqCtx)
	if !ok {
		return
	}

	var query conversationrequests.ListConversationsQueryParams
	if err := reqCtx.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"invalid query parameters", "3b5d7f9a-1c2d-4e3f-8a4b-5c6d7e8f9a0c")
		return
	}

	convs, err := h.conversations.List(reqCtx.Request.Context(), userID, conversation.ListFilter{
		IncludeArchived: query.IncludeArchived,
		Limit:           query.Limit,
		Offset:          query.Offset,
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list conversations")
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationListResponse(convs))
}

// GetConversation handles GET /v1/conversations/:conv_public_id.
func (h *ConversationHandler) GetConversation(reqCtx *gin.Context) {
	userID, ok := h.requireUser(reqCtx)
	if !ok {
		return
	}

	conv, err := h.conversations.Get(reqCtx.Request.Context(), userID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationResponse(conv))
}

// UpdateConversation handles PATCH /v1/conversations/:conv_public_id. Title
// and archived state update independently; either alone is a valid request.
func (h *ConversationHandler) UpdateConversation(reqCtx *gin.Context) {
	userID, ok := h.requireUser(reqCtx)
	if !ok {
		return
	}
	ctx := reqCtx.Request.Context()
	publicID := reqCtx.Param("conv_public_id")

	var request conversationrequests.UpdateConversationRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"invalid request body", "5d7f9a1b-3c4d-4e5f-8a6b-7c8d9e0f1a2c")
		return
	}
	if request.Title == nil && request.Archived == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"nothing to update", "7f9a1b3d-5c6d-4e7f-8a8b-9c0d1e2f3a4c")
		return
	}

	var conv *conversation.Conversation
	var err error
	if request.Title != nil {
		conv, err = h.conversations.Rename(ctx, userID, publicID, *request.Title)
		if err != nil {
			responses.HandleError(reqCtx, err, "failed to rename conversation")
			return
		}
	}
	if request.Archived != nil {
		if *request.Archived {
			conv, err = h.conversations.Archive(ctx, userID, publicID)
		} else {
			conv, err = h.conversations.Unarchive(ctx, userID, publicID)
		}
		if err != nil {
			responses.HandleError(reqCtx, err, "failed to update archived state")
			return
		}
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationResponse(conv))
}

// DeleteConversation handles DELETE /v1/conversations/:conv_public_id.
func (h *ConversationHandler) DeleteConversation(reqCtx *gin.Context) {
	userID, ok := h.requireUser(reqCtx)
	if !ok {
		return
	}
	publicID := reqCtx.Param("conv_public_id")

	if err := h.conversations.Delete(reqCtx.Request.Context(), userID, publicID); err != nil {
		responses.HandleError(reqCtx, err, "failed to delete conversation")
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationDeletedResponse(publicID))
}

// ListMessages handles GET /v1/conversations/:conv_public_id/messages,
// returning the live chain in chronological order.
func (h *ConversationHandler) ListMessages(reqCtx *gin.Context) {
	userID, ok := h.requireUser(reqCtx)
	if !ok {
		return
	}
	ctx := reqCtx.Request.Context()

	conv, err := h.conversations.Get(ctx, userID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get conversation")
		return
	}

	messages, err := h.conversations.LiveChain(ctx, conv)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to load messages")
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewMessageListResponse(messages))
}

func (h *ConversationHandler) requireUser(reqCtx *gin.Context) (string, bool) {
	userID := middlewares.GetUserIDFromContext(reqCtx)
	if userID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized,
			"authentication required", "9a1b3d5f-7c8d-4e9f-8a0b-1c2d3e4f5a6c")
		return "", false
	}
	return userID, true
}
