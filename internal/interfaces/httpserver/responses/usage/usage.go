package usageresponses

import (
	"time"

	"parley-server/internal/domain/tokenusage"
)

// UsageSummaryResponse aggregates a user's token spend over a window.
type UsageSummaryResponse struct {
	Object            string `json:"object"`
	Since             int64  `json:"since"`
	TurnCount         int64  `json:"turn_count"`
	TotalInputTokens  int64  `json:"total_input_tokens"`
	TotalOutputTokens int64  `json:"total_output_tokens"`
	TotalTokens       int64  `json:"total_tokens"`
	TotalCost         string `json:"total_cost"`
}

// NewUsageSummaryResponse creates a usage summary response.
func NewUsageSummaryResponse(summary *tokenusage.Summary, since time.Time) *UsageSummaryResponse {
	return &UsageSummaryResponse{
		Object:            "usage.summary",
		Since:             since.Unix(),
		TurnCount:         summary.TurnCount,
		TotalInputTokens:  summary.TotalInputTokens,
		TotalOutputTokens: summary.TotalOutputTokens,
		TotalTokens:       summary.TotalTokens,
		TotalCost:         summary.TotalCost.String(),
	}
}
