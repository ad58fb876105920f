package model

import (
	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/modelhandler"
)

type ModelRoute struct {
	handler *modelhandler.ModelHandler
}

func NewModelRoute(handler *modelhandler.ModelHandler) *ModelRoute {
	return &ModelRoute{handler: handler}
}

func (modelRoute *ModelRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/models", modelRoute.handler.ListModels)
}
