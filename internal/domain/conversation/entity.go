package conversation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role labels who authored a message. Fixed at creation, never mutated.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ValidRole reports whether the role is one of the persisted roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Conversation is one user-owned chat thread. Counters are cumulative over
// the conversation's whole history including soft-deleted turns, since
// soft-deleted rows are retained for cost accounting.
type Conversation struct {
	ID           uint
	PublicID     string
	UserID       string
	Title        string
	Provider     string
	Model        string
	SystemPrompt string

	MessageCount      int
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
	TotalCost         decimal.Decimal

	LastMessageAt *time.Time
	ArchivedAt    *time.Time
	Metadata      map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Archived reports whether the conversation has been archived.
func (c *Conversation) Archived() bool {
	return c.ArchivedAt != nil
}

// Message is one entry of a conversation's linear chain. PrevMessageID links
// to the predecessor in the same conversation and is nil only for the first
// message; a partial unique index over live rows guarantees at most one live
// successor per message.
type Message struct {
	ID             uint
	PublicID       string
	ConversationID uint
	PrevMessageID  *uint
	Role           Role
	Content        string
	Provider       string
	Model          string

	InputTokens  int
	OutputTokens int
	TotalTokens  int
	LatencyMS    int64
	Cost         decimal.Decimal

	Metadata  map[string]any
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}
