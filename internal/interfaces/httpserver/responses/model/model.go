package modelresponses

import (
	"parley-server/internal/domain/modelcatalog"
)

// ModelResponse represents one routable model over the wire.
type ModelResponse struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider"`
	Enabled     bool   `json:"enabled"`
	SyncedAt    int64  `json:"synced_at,omitempty"`
	CreatedAt   int64  `json:"created"`
}

// ModelListResponse represents the model catalog.
type ModelListResponse struct {
	Object string          `json:"object"`
	Data   []ModelResponse `json:"data"`
}

// NewModelResponse creates a response from a catalog model.
func NewModelResponse(model *modelcatalog.Model) *ModelResponse {
	response := &ModelResponse{
		ID:          model.ModelID,
		Object:      "model",
		DisplayName: model.DisplayName,
		Provider:    model.Provider,
		Enabled:     model.Enabled,
		CreatedAt:   model.CreatedAt.Unix(),
	}
	if !model.SyncedAt.IsZero() {
		response.SyncedAt = model.SyncedAt.Unix()
	}
	return response
}

// NewModelListResponse creates a model list response.
func NewModelListResponse(models []*modelcatalog.Model) *ModelListResponse {
	data := make([]ModelResponse, 0, len(models))
	for _, model := range models {
		data = append(data, *NewModelResponse(model))
	}
	return &ModelListResponse{Object: "list", Data: data}
}
