package dbschema

import (
	"time"

	"parley-server/internal/domain/modelcatalog"
	"parley-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ModelCatalog{})
}

// ModelCatalog represents the database schema for synced vendor models.
type ModelCatalog struct {
	BaseModel
	ModelID     string `gorm:"type:varchar(128);uniqueIndex:idx_model_catalogs_provider_model;not null"`
	DisplayName string `gorm:"type:varchar(256);not null;default:''"`
	Provider    string `gorm:"type:varchar(32);uniqueIndex:idx_model_catalogs_provider_model;not null"`
	Enabled     bool   `gorm:"not null;default:true"`
	SyncedAt    *time.Time
}

// NewSchemaModelCatalog converts a domain catalog entry to its schema row.
func NewSchemaModelCatalog(model *modelcatalog.Model) *ModelCatalog {
	row := &ModelCatalog{
		BaseModel: BaseModel{
			ID:        model.ID,
			CreatedAt: model.CreatedAt,
			UpdatedAt: model.UpdatedAt,
		},
		ModelID:     model.ModelID,
		DisplayName: model.DisplayName,
		Provider:    model.Provider,
		Enabled:     model.Enabled,
	}
	if !model.SyncedAt.IsZero() {
		syncedAt := model.SyncedAt
		row.SyncedAt = &syncedAt
	}
	return row
}

// EtoD converts the schema row back to the domain catalog entry.
func (m *ModelCatalog) EtoD() *modelcatalog.Model {
	entry := &modelcatalog.Model{
		ID:          m.ID,
		ModelID:     m.ModelID,
		DisplayName: m.DisplayName,
		Provider:    m.Provider,
		Enabled:     m.Enabled,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.SyncedAt != nil {
		entry.SyncedAt = *m.SyncedAt
	}
	return entry
}
