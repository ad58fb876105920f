package chat

import (
	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
)

type ChatRoute struct {
	handler *chathandler.ChatHandler
}

func NewChatRoute(handler *chathandler.ChatHandler) *ChatRoute {
	return &ChatRoute{handler: handler}
}

func (chatRoute *ChatRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/chat", chatRoute.handler.CreateTurn)
}
