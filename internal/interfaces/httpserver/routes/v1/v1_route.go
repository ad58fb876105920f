package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/config"
	"parley-server/internal/interfaces/httpserver/routes/v1/chat"
	"parley-server/internal/interfaces/httpserver/routes/v1/conversation"
	"parley-server/internal/interfaces/httpserver/routes/v1/model"
	"parley-server/internal/interfaces/httpserver/routes/v1/usage"
)

type V1Route struct {
	chat         *chat.ChatRoute
	conversation *conversation.ConversationRoute
	model        *model.ModelRoute
	usage        *usage.UsageRoute
}

func NewV1Route(
	chat *chat.ChatRoute,
	conversation *conversation.ConversationRoute,
	model *model.ModelRoute,
	usage *usage.UsageRoute,
) *V1Route {
	return &V1Route{
		chat,
		conversation,
		model,
		usage,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)

	v1Route.chat.RegisterRouter(v1Router)
	v1Route.conversation.RegisterRouter(v1Router)
	v1Route.model.RegisterRouter(v1Router)
	v1Route.usage.RegisterRouter(v1Router)
}

// GetVersion returns the current build version of the API server.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": config.Version,
		"service": config.GetGlobal().ServiceName,
	})
}
