package tokenusagerepo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/utils/platformerrors"
)

type TokenUsageGormRepository struct {
	db *transaction.Database
}

var _ tokenusage.Repository = (*TokenUsageGormRepository)(nil)

func NewTokenUsageGormRepository(db *transaction.Database) tokenusage.Repository {
	return &TokenUsageGormRepository{db}
}

// Create implements tokenusage.Repository.
func (repo *TokenUsageGormRepository) Create(ctx context.Context, record *tokenusage.Record) error {
	model := dbschema.NewSchemaTokenUsage(record)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create token usage record", err, "4a5b6c7d-8e9f-4a0b-8c1d-2e3f4a5b6c7d")
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	return nil
}

// SummarizeByUser implements tokenusage.Repository.
func (repo *TokenUsageGormRepository) SummarizeByUser(ctx context.Context, userID string, since time.Time) (*tokenusage.Summary, error) {
	var row struct {
		TurnCount         int64
		TotalInputTokens  int64
		TotalOutputTokens int64
		TotalTokens       int64
		TotalCost         decimal.Decimal
	}
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.TokenUsage{}).
		Select("COUNT(*) AS turn_count, "+
			"COALESCE(SUM(input_tokens), 0) AS total_input_tokens, "+
			"COALESCE(SUM(output_tokens), 0) AS total_output_tokens, "+
			"COALESCE(SUM(total_tokens), 0) AS total_tokens, "+
			"COALESCE(SUM(cost), 0) AS total_cost").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&row).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to summarize token usage", err, "9c0d1e2f-3a4b-4c5d-8e6f-7a8b9c0d1e2e")
	}

	return &tokenusage.Summary{
		TurnCount:         row.TurnCount,
		TotalInputTokens:  row.TotalInputTokens,
		TotalOutputTokens: row.TotalOutputTokens,
		TotalTokens:       row.TotalTokens,
		TotalCost:         row.TotalCost,
	}, nil
}
