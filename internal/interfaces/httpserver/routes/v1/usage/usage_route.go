package usage

import (
	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/usagehandler"
)

type UsageRoute struct {
	handler *usagehandler.UsageHandler
}

func NewUsageRoute(handler *usagehandler.UsageHandler) *UsageRoute {
	return &UsageRoute{handler: handler}
}

func (usageRoute *UsageRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/usage", usageRoute.handler.GetUsage)
}
