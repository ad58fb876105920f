package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/utils/functional"
	"parley-server/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ conversation.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) conversation.MessageRepository {
	return &MessageGormRepository{db}
}

// Create implements conversation.MessageRepository. A second live message
// naming the same predecessor trips the live-successor unique index; that
// surfaces here as a conflict so concurrent chain extensions lose cleanly.
func (repo *MessageGormRepository) Create(ctx context.Context, msg *conversation.Message) error {
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"message predecessor already has a live successor", err, "c5d7e9f1-3a4b-4c5d-8e6f-7a8b9c0d1e2f")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create message", err, "8a9b0c1d-2e3f-4a4b-8c5d-6e7f8a9b0c1d")
	}
	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	msg.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByPublicID implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*conversation.Message, error) {
	var model dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ? AND public_id = ?", conversationID, publicID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"message not found", err, "3e4f5a6b-7c8d-4e9f-8a0b-1c2d3e4f5a6c")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find message by public ID", err, "0d1e2f3a-4b5c-4d6e-8f7a-8b9c0d1e2f3a")
	}
	return model.EtoD(), nil
}

// ListLive implements conversation.MessageRepository.
func (repo *MessageGormRepository) ListLive(ctx context.Context, conversationID uint) ([]*conversation.Message, error) {
	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list messages", err, "5f6a7b8c-9d0e-4f1a-8b2c-3d4e5f6a7b8c")
	}

	return functional.Map(rows, func(row *dbschema.Message) *conversation.Message {
		return row.EtoD()
	}), nil
}

// LastLive implements conversation.MessageRepository.
func (repo *MessageGormRepository) LastLive(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	var model dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find last live message", err, "2b3c4d5e-6f7a-4b8c-8d9e-0f1a2b3c4d5e")
	}
	return model.EtoD(), nil
}

// SoftDeleteFrom implements conversation.MessageRepository.
func (repo *MessageGormRepository) SoftDeleteFrom(ctx context.Context, conversationID uint, cutoff time.Time) (int64, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ? AND deleted_at IS NULL AND created_at >= ?", conversationID, cutoff).
		Update("deleted_at", time.Now().UTC())
	if result.Error != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to soft delete messages", result.Error, "7d8e9f0a-1b2c-4d3e-8f4a-5b6c7d8e9f0b")
	}
	return result.RowsAffected, nil
}
