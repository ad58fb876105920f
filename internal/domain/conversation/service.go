package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"parley-server/internal/utils/idgen"
	"parley-server/internal/utils/platformerrors"
	"parley-server/internal/utils/stringutils"
)

const (
	conversationIDPrefix = "conv"
	messageIDPrefix      = "msg"
	publicIDLength       = 16
)

// Service owns conversation and chain mutations. All cross-turn consistency
// is enforced by the database: the partial unique index on live predecessor
// references is the sole guard against two turns racing to extend one chain.
type Service struct {
	conversations Repository
	messages      MessageRepository
	tx            Transactor
}

// NewService wires the conversation service.
func NewService(conversations Repository, messages MessageRepository, tx Transactor) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		tx:            tx,
	}
}

// CreateParams describes a new conversation.
type CreateParams struct {
	Title        string
	Provider     string
	Model        string
	SystemPrompt string
	Metadata     map[string]any
}

// Create persists a new conversation for the user.
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*Conversation, error) {
	title := params.Title
	if title == "" {
		title = stringutils.DefaultTitle
	}
	conv := &Conversation{
		PublicID:     idgen.MustGenerateSecureID(conversationIDPrefix, publicIDLength),
		UserID:       userID,
		Title:        title,
		Provider:     params.Provider,
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		TotalCost:    decimal.Zero,
		Metadata:     params.Metadata,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create conversation")
	}
	return conv, nil
}

// Get loads a conversation owned by the user.
func (s *Service) Get(ctx context.Context, userID, publicID string) (*Conversation, error) {
	conv, err := s.conversations.FindByPublicID(ctx, userID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "get conversation")
	}
	return conv, nil
}

// List returns the user's conversations.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]*Conversation, error) {
	convs, err := s.conversations.List(ctx, userID, filter)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list conversations")
	}
	return convs, nil
}

// Rename updates the conversation title.
func (s *Service) Rename(ctx context.Context, userID, publicID, title string) (*Conversation, error) {
	if title == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"title must not be empty", nil, "9e0f1a2b-3c4d-4e5f-8a6b-7c8d9e0f1a2b")
	}
	conv, err := s.Get(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "rename conversation")
	}
	return conv, nil
}

// SetTitle stores a generated title only when the conversation still carries
// the default one, so user renames are never overwritten by auto-titling.
func (s *Service) SetTitle(ctx context.Context, conv *Conversation, title string) error {
	if title == "" || conv.Title != stringutils.DefaultTitle {
		return nil
	}
	conv.Title = title
	if err := s.conversations.Update(ctx, conv); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "set conversation title")
	}
	return nil
}

// Archive marks the conversation archived.
func (s *Service) Archive(ctx context.Context, userID, publicID string) (*Conversation, error) {
	conv, err := s.Get(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	if conv.ArchivedAt == nil {
		now := time.Now().UTC()
		conv.ArchivedAt = &now
		if err := s.conversations.Update(ctx, conv); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "archive conversation")
		}
	}
	return conv, nil
}

// Unarchive clears the archived marker.
func (s *Service) Unarchive(ctx context.Context, userID, publicID string) (*Conversation, error) {
	conv, err := s.Get(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	if conv.ArchivedAt != nil {
		conv.ArchivedAt = nil
		if err := s.conversations.Update(ctx, conv); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "unarchive conversation")
		}
	}
	return conv, nil
}

// Delete removes the conversation and all of its messages permanently.
func (s *Service) Delete(ctx context.Context, userID, publicID string) error {
	conv, err := s.Get(ctx, userID, publicID)
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conv); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "delete conversation")
	}
	return nil
}

// LiveChain returns the conversation's non-deleted messages in chronological
// order, verified to form a single linear chain.
func (s *Service) LiveChain(ctx context.Context, conv *Conversation) ([]*Message, error) {
	messages, err := s.messages.ListLive(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load message chain")
	}
	if err := ValidateChain(messages); err != nil {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"conversation chain is corrupted", err, "5b6c7d8e-9f0a-4b1c-8d2e-3f4a5b6c7d8e",
			map[string]any{"conversation_id": conv.PublicID})
	}
	return messages, nil
}

// LastLive returns the newest non-deleted message, or nil for an empty chain.
func (s *Service) LastLive(ctx context.Context, conv *Conversation) (*Message, error) {
	msg, err := s.messages.LastLive(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chain tail")
	}
	return msg, nil
}

// AppendParams describes a message to append to the chain.
type AppendParams struct {
	PrevMessageID *uint
	Role          Role
	Content       string
	Provider      string
	Model         string
	InputTokens   int
	OutputTokens  int
	TotalTokens   int
	LatencyMS     int64
	Cost          decimal.Decimal
	Metadata      map[string]any
}

// Append writes one message and bumps the conversation counters in a single
// transaction. A concurrent append reusing the same live predecessor fails
// with a conflict from the unique index; nothing is partially written.
func (s *Service) Append(ctx context.Context, conv *Conversation, params AppendParams) (*Message, error) {
	if !ValidRole(params.Role) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("invalid message role: %s", params.Role), nil, "1f2a3b4c-5d6e-4f7a-8b9c-0d1e2f3a4b5c")
	}

	msg := &Message{
		PublicID:       idgen.MustGenerateSecureID(messageIDPrefix, publicIDLength),
		ConversationID: conv.ID,
		PrevMessageID:  params.PrevMessageID,
		Role:           params.Role,
		Content:        params.Content,
		Provider:       params.Provider,
		Model:          params.Model,
		InputTokens:    params.InputTokens,
		OutputTokens:   params.OutputTokens,
		TotalTokens:    params.TotalTokens,
		LatencyMS:      params.LatencyMS,
		Cost:           params.Cost,
		Metadata:       params.Metadata,
	}

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.Create(txCtx, msg); err != nil {
			return err
		}
		now := time.Now().UTC()
		conv.MessageCount++
		conv.TotalInputTokens += int64(params.InputTokens)
		conv.TotalOutputTokens += int64(params.OutputTokens)
		conv.TotalTokens += int64(params.TotalTokens)
		conv.TotalCost = conv.TotalCost.Add(params.Cost)
		conv.LastMessageAt = &now
		return s.conversations.Update(txCtx, conv)
	})
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				"another turn already extended this conversation", err, "6d7e8f9a-0b1c-4d2e-8f3a-4b5c6d7e8f9a")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "append message")
	}
	return msg, nil
}

// TruncateFrom soft-deletes every live message created at or after the
// anchor and returns the last surviving message (nil when the chain is now
// empty). Counters are left untouched: soft-deleted rows stay part of the
// conversation's cost history.
func (s *Service) TruncateFrom(ctx context.Context, conv *Conversation, anchorPublicID string) (*Message, error) {
	anchor, err := s.messages.FindByPublicID(ctx, conv.ID, anchorPublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find anchor message")
	}
	if anchor.Deleted() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"anchor message is already deleted", nil, "3a4b5c6d-7e8f-4a9b-8c0d-1e2f3a4b5c6d")
	}

	var survivor *Message
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.messages.SoftDeleteFrom(txCtx, conv.ID, anchor.CreatedAt); err != nil {
			return err
		}
		last, err := s.messages.LastLive(txCtx, conv.ID)
		if err != nil {
			return err
		}
		survivor = last
		return nil
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "truncate conversation")
	}
	return survivor, nil
}

// ValidateChain checks that messages (chronological, live only) form one
// simple path: the first has no predecessor, every later message names the
// one before it, and no predecessor is named twice.
func ValidateChain(messages []*Message) error {
	seen := make(map[uint]bool, len(messages))
	for i, msg := range messages {
		if msg.PrevMessageID == nil {
			if i != 0 {
				return fmt.Errorf("message %s has no predecessor but is not first in chain", msg.PublicID)
			}
			continue
		}
		if i == 0 {
			return fmt.Errorf("first message %s references predecessor %d", msg.PublicID, *msg.PrevMessageID)
		}
		if *msg.PrevMessageID != messages[i-1].ID {
			return fmt.Errorf("message %s references %d, expected %d", msg.PublicID, *msg.PrevMessageID, messages[i-1].ID)
		}
		if seen[*msg.PrevMessageID] {
			return fmt.Errorf("predecessor %d referenced twice", *msg.PrevMessageID)
		}
		seen[*msg.PrevMessageID] = true
	}
	return nil
}
