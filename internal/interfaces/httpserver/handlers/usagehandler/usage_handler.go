package usagehandler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/interfaces/httpserver/middlewares"
	usagerequests "parley-server/internal/interfaces/httpserver/requests/usage"
	"parley-server/internal/interfaces/httpserver/responses"
	usageresponses "parley-server/internal/interfaces/httpserver/responses/usage"
	"parley-server/internal/utils/platformerrors"
)

// UsageHandler serves per-user token accounting summaries.
type UsageHandler struct {
	usage *tokenusage.Service
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage *tokenusage.Service) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GetUsage handles GET /v1/usage. The window defaults to the last 30 days.
func (h *UsageHandler) GetUsage(reqCtx *gin.Context) {
	userID := middlewares.GetUserIDFromContext(reqCtx)
	if userID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized,
			"authentication required", "1b3d5f7a-9c0d-4e1f-8a2b-3c4d5e6f7a8c")
		return
	}

	var query usagerequests.UsageQueryParams
	if err := reqCtx.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation,
			"invalid query parameters", "3d5f7a9b-1c2d-4e3f-8a4b-5c6d7e8f9a0d")
		return
	}

	days := query.Days
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	summary, err := h.usage.SummaryForUser(reqCtx.Request.Context(), userID, since)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to summarize usage")
		return
	}

	reqCtx.JSON(http.StatusOK, usageresponses.NewUsageSummaryResponse(summary, since))
}
