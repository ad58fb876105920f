package modelhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/domain/modelcatalog"
	"parley-server/internal/interfaces/httpserver/responses"
	modelresponses "parley-server/internal/interfaces/httpserver/responses/model"
)

// ModelHandler serves the routable model catalog.
type ModelHandler struct {
	catalog *modelcatalog.Service
}

// NewModelHandler creates a new model handler
func NewModelHandler(catalog *modelcatalog.Service) *ModelHandler {
	return &ModelHandler{catalog: catalog}
}

// ListModels handles GET /v1/models.
func (h *ModelHandler) ListModels(reqCtx *gin.Context) {
	models, err := h.catalog.List(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list models")
		return
	}
	reqCtx.JSON(http.StatusOK, modelresponses.NewModelListResponse(models))
}
