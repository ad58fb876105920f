package conversation

import (
	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
	"parley-server/internal/interfaces/httpserver/handlers/conversationhandler"
)

type ConversationRoute struct {
	handler     *conversationhandler.ConversationHandler
	chatHandler *chathandler.ChatHandler
}

func NewConversationRoute(
	handler *conversationhandler.ConversationHandler,
	chatHandler *chathandler.ChatHandler,
) *ConversationRoute {
	return &ConversationRoute{
		handler:     handler,
		chatHandler: chatHandler,
	}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.handler.ListConversations)
	conversations.GET("/:conv_public_id", route.handler.GetConversation)
	conversations.PATCH("/:conv_public_id", route.handler.UpdateConversation)
	conversations.DELETE("/:conv_public_id", route.handler.DeleteConversation)
	conversations.GET("/:conv_public_id/messages", route.handler.ListMessages)
	conversations.POST("/:conv_public_id/regenerate", route.chatHandler.Regenerate)
}
