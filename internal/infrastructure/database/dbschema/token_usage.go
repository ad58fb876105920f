package dbschema

import (
	"time"

	"github.com/shopspring/decimal"

	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(TokenUsage{})
}

// TokenUsage represents the database schema for per-turn usage records.
type TokenUsage struct {
	ID                uint   `gorm:"primarykey"`
	PublicID          string `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID            string `gorm:"type:varchar(64);index:idx_token_usages_user_created_at;not null"`
	ConversationID    uint   `gorm:"not null"`
	MessageID         *uint
	Provider          string          `gorm:"type:varchar(32);not null;default:''"`
	Model             string          `gorm:"type:varchar(128);not null;default:''"`
	UpstreamRequestID string          `gorm:"type:varchar(128);not null;default:''"`
	InputTokens       int             `gorm:"not null;default:0"`
	OutputTokens      int             `gorm:"not null;default:0"`
	TotalTokens       int             `gorm:"not null;default:0"`
	Cost              decimal.Decimal `gorm:"type:numeric(14,6);not null;default:0"`
	CreatedAt         time.Time       `gorm:"index:idx_token_usages_user_created_at"`
}

// NewSchemaTokenUsage converts a domain usage record to its schema row.
func NewSchemaTokenUsage(record *tokenusage.Record) *TokenUsage {
	return &TokenUsage{
		ID:                record.ID,
		PublicID:          record.PublicID,
		UserID:            record.UserID,
		ConversationID:    record.ConversationID,
		MessageID:         record.MessageID,
		Provider:          record.Provider,
		Model:             record.Model,
		UpstreamRequestID: record.UpstreamRequestID,
		InputTokens:       record.InputTokens,
		OutputTokens:      record.OutputTokens,
		TotalTokens:       record.TotalTokens,
		Cost:              record.Cost,
		CreatedAt:         record.CreatedAt,
	}
}

// EtoD converts the schema row back to the domain record.
func (u *TokenUsage) EtoD() *tokenusage.Record {
	return &tokenusage.Record{
		ID:                u.ID,
		PublicID:          u.PublicID,
		UserID:            u.UserID,
		ConversationID:    u.ConversationID,
		MessageID:         u.MessageID,
		Provider:          u.Provider,
		Model:             u.Model,
		UpstreamRequestID: u.UpstreamRequestID,
		InputTokens:       u.InputTokens,
		OutputTokens:      u.OutputTokens,
		TotalTokens:       u.TotalTokens,
		Cost:              u.Cost,
		CreatedAt:         u.CreatedAt,
	}
}
