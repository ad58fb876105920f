package dbschema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	BaseModel
	PublicID     string `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID       string `gorm:"type:varchar(64);index:idx_conversations_user_updated_at;not null"`
	Title        string `gorm:"type:varchar(256);not null;default:'New Conversation'"`
	Provider     string `gorm:"type:varchar(32);not null"`
	Model        string `gorm:"type:varchar(128);not null"`
	SystemPrompt string `gorm:"type:text;not null;default:''"`

	MessageCount      int             `gorm:"not null;default:0"`
	TotalInputTokens  int64           `gorm:"not null;default:0"`
	TotalOutputTokens int64           `gorm:"not null;default:0"`
	TotalTokens       int64           `gorm:"not null;default:0"`
	TotalCost         decimal.Decimal `gorm:"type:numeric(14,6);not null;default:0"`

	LastMessageAt *time.Time
	ArchivedAt    *time.Time
	Metadata      datatypes.JSON `gorm:"type:jsonb"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// Message represents one entry of a conversation's chain. DeletedAt is a
// plain column, not a gorm soft-delete: deleted rows stay queryable for the
// cost audit and the live-successor partial index filters on it.
type Message struct {
	BaseModel
	PublicID       string `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint   `gorm:"index:idx_messages_conversation_created_at;not null"`
	PrevMessageID  *uint  `gorm:"index"`
	Role           string `gorm:"type:varchar(20);not null"`
	Content        string `gorm:"type:text;not null;default:''"`
	Provider       string `gorm:"type:varchar(32);not null;default:''"`
	Model          string `gorm:"type:varchar(128);not null;default:''"`

	InputTokens  int             `gorm:"not null;default:0"`
	OutputTokens int             `gorm:"not null;default:0"`
	TotalTokens  int             `gorm:"not null;default:0"`
	LatencyMS    int64           `gorm:"not null;default:0"`
	Cost         decimal.Decimal `gorm:"type:numeric(14,6);not null;default:0"`

	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	DeletedAt *time.Time
}

// NewSchemaConversation converts a domain conversation to its schema row.
func NewSchemaConversation(conv *conversation.Conversation) *Conversation {
	return &Conversation{
		BaseModel: BaseModel{
			ID:        conv.ID,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		},
		PublicID:          conv.PublicID,
		UserID:            conv.UserID,
		Title:             conv.Title,
		Provider:          conv.Provider,
		Model:             conv.Model,
		SystemPrompt:      conv.SystemPrompt,
		MessageCount:      conv.MessageCount,
		TotalInputTokens:  conv.TotalInputTokens,
		TotalOutputTokens: conv.TotalOutputTokens,
		TotalTokens:       conv.TotalTokens,
		TotalCost:         conv.TotalCost,
		LastMessageAt:     conv.LastMessageAt,
		ArchivedAt:        conv.ArchivedAt,
		Metadata:          metadataToJSON(conv.Metadata),
	}
}

// EtoD converts the schema row back to the domain conversation.
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:                c.ID,
		PublicID:          c.PublicID,
		UserID:            c.UserID,
		Title:             c.Title,
		Provider:          c.Provider,
		Model:             c.Model,
		SystemPrompt:      c.SystemPrompt,
		MessageCount:      c.MessageCount,
		TotalInputTokens:  c.TotalInputTokens,
		TotalOutputTokens: c.TotalOutputTokens,
		TotalTokens:       c.TotalTokens,
		TotalCost:         c.TotalCost,
		LastMessageAt:     c.LastMessageAt,
		ArchivedAt:        c.ArchivedAt,
		Metadata:          metadataFromJSON(c.Metadata),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// NewSchemaMessage converts a domain message to its schema row.
func NewSchemaMessage(msg *conversation.Message) *Message {
	return &Message{
		BaseModel: BaseModel{
			ID:        msg.ID,
			CreatedAt: msg.CreatedAt,
			UpdatedAt: msg.UpdatedAt,
		},
		PublicID:       msg.PublicID,
		ConversationID: msg.ConversationID,
		PrevMessageID:  msg.PrevMessageID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Provider:       msg.Provider,
		Model:          msg.Model,
		InputTokens:    msg.InputTokens,
		OutputTokens:   msg.OutputTokens,
		TotalTokens:    msg.TotalTokens,
		LatencyMS:      msg.LatencyMS,
		Cost:           msg.Cost,
		Metadata:       metadataToJSON(msg.Metadata),
		DeletedAt:      msg.DeletedAt,
	}
}

// EtoD converts the schema row back to the domain message.
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		PrevMessageID:  m.PrevMessageID,
		Role:           conversation.Role(m.Role),
		Content:        m.Content,
		Provider:       m.Provider,
		Model:          m.Model,
		InputTokens:    m.InputTokens,
		OutputTokens:   m.OutputTokens,
		TotalTokens:    m.TotalTokens,
		LatencyMS:      m.LatencyMS,
		Cost:           m.Cost,
		Metadata:       metadataFromJSON(m.Metadata),
		DeletedAt:      m.DeletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
