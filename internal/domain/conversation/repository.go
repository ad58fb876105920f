package conversation

import (
	"context"
	"time"
)

// ListFilter narrows conversation listings.
type ListFilter struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Repository persists conversations.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, userID, publicID string) (*Conversation, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	// Delete removes the conversation permanently, cascading to its messages.
	Delete(ctx context.Context, conv *Conversation) error
}

// MessageRepository persists messages. Implementations must surface a
// duplicate live-predecessor write as a conflict error.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error)
	// ListLive returns the non-deleted messages of a conversation in
	// chronological order.
	ListLive(ctx context.Context, conversationID uint) ([]*Message, error)
	// LastLive returns the newest non-deleted message, or nil when the
	// conversation has no live messages.
	LastLive(ctx context.Context, conversationID uint) (*Message, error)
	// SoftDeleteFrom marks every live message created at or after the cutoff
	// as deleted and returns how many rows were affected.
	SoftDeleteFrom(ctx context.Context, conversationID uint, cutoff time.Time) (int64, error)
}

// Transactor runs a function inside one database transaction. The context
// passed to fn carries the transaction for repository calls made within.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
