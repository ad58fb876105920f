package conversationrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/utils/functional"
	"parley-server/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.Repository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) conversation.Repository {
	return &ConversationGormRepository{db}
}

// Create implements conversation.Repository.
func (repo *ConversationGormRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"conversation already exists", err, "b3a5c1d7-2e4f-4a68-9c0b-d1e2f3a4b5c6")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation", err, "4d6e8f0a-1b2c-4d3e-8f4a-5b6c7d8e9f0a")
	}
	// Update the domain object with generated ID and timestamps
	conv.ID = model.ID
	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	metrics.ConversationsCreatedTotal.Inc()
	return nil
}

// FindByPublicID implements conversation.Repository. Ownership is part of
// the lookup: another user's conversation is indistinguishable from a
// missing one.
func (repo *ConversationGormRepository) FindByPublicID(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
	var model dbschema.Conversation
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("user_id = ? AND public_id = ?", userID, publicID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"conversation not found", err, "7f9a1b3c-5d6e-4f7a-8b9c-0d1e2f3a4b5c")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation by public ID", err, "2c4d6e8f-0a1b-4c2d-8e3f-4a5b6c7d8e9f")
	}
	return model.EtoD(), nil
}

// List implements conversation.Repository.
func (repo *ConversationGormRepository) List(ctx context.Context, userID string, filter conversation.ListFilter) ([]*conversation.Conversation, error) {
	sql := repo.db.GetTx(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if !filter.IncludeArchived {
		sql = sql.Where("archived_at IS NULL")
	}
	if filter.Limit > 0 {
		sql = sql.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sql = sql.Offset(filter.Offset)
	}

	var rows []*dbschema.Conversation
	if err := sql.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations", err, "9e0f1a2b-3c4d-4e5f-8a6b-7c8d9e0f1a2b")
	}

	return functional.Map(rows, func(row *dbschema.Conversation) *conversation.Conversation {
		return row.EtoD()
	}), nil
}

// Update implements conversation.Repository.
func (repo *ConversationGormRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Save(model).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation", err, "1a2b3c4d-5e6f-4a7b-8c8d-9e0f1a2b3c4d")
	}
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// Delete implements conversation.Repository. Messages go with the
// conversation through the foreign key cascade.
func (repo *ConversationGormRepository) Delete(ctx context.Context, conv *conversation.Conversation) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("id = ?", conv.ID).
		Delete(&dbschema.Conversation{}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation", err, "6b7c8d9e-0f1a-4b2c-8d3e-4f5a6b7c8d9e")
	}
	return nil
}
