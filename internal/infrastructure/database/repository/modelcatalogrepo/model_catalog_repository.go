package modelcatalogrepo

import (
	"context"

	"gorm.io/gorm/clause"

	"parley-server/internal/domain/modelcatalog"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/utils/functional"
	"parley-server/internal/utils/platformerrors"
)

type ModelCatalogGormRepository struct {
	db *transaction.Database
}

var _ modelcatalog.Repository = (*ModelCatalogGormRepository)(nil)

func NewModelCatalogGormRepository(db *transaction.Database) modelcatalog.Repository {
	return &ModelCatalogGormRepository{db}
}

// Upsert implements modelcatalog.Repository. Sync runs repeatedly; the
// (provider, model_id) pair is the natural key.
func (repo *ModelCatalogGormRepository) Upsert(ctx context.Context, model *modelcatalog.Model) error {
	row := dbschema.NewSchemaModelCatalog(model)
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "enabled", "synced_at", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to upsert model catalog entry", err, "6e7f8a9b-0c1d-4e2f-8a3b-4c5d6e7f8a9b")
	}
	model.ID = row.ID
	return nil
}

// List implements modelcatalog.Repository.
func (repo *ModelCatalogGormRepository) List(ctx context.Context) ([]*modelcatalog.Model, error) {
	var rows []*dbschema.ModelCatalog
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Order("provider ASC, model_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list model catalog", err, "1d2e3f4a-5b6c-4d7e-8f8a-9b0c1d2e3f4a")
	}

	return functional.Map(rows, func(row *dbschema.ModelCatalog) *modelcatalog.Model {
		return row.EtoD()
	}), nil
}

// DisableMissing implements modelcatalog.Repository. Models a vendor no
// longer lists stay in the catalog but stop being offered.
func (repo *ModelCatalogGormRepository) DisableMissing(ctx context.Context, providerKey string, keepModelIDs []string) error {
	sql := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.ModelCatalog{}).
		Where("provider = ? AND enabled = ?", providerKey, true)
	if len(keepModelIDs) > 0 {
		sql = sql.Where("model_id NOT IN ?", keepModelIDs)
	}
	if err := sql.Update("enabled", false).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to disable stale model catalog entries", err, "8b9c0d1e-2f3a-4b4c-8d5e-6f7a8b9c0d1e")
	}
	return nil
}
