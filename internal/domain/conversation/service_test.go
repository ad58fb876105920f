package conversation

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/utils/platformerrors"
	"parley-server/internal/utils/stringutils"
)

type fakeConversationRepo struct {
	nextID uint
	items  map[uint]*Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{items: map[uint]*Conversation{}}
}

func (r *fakeConversationRepo) Create(_ context.Context, conv *Conversation) error {
	r.nextID++
	conv.ID = r.nextID
	conv.CreatedAt = time.Now().UTC()
	copied := *conv
	r.items[conv.ID] = &copied
	return nil
}

func (r *fakeConversationRepo) FindByPublicID(ctx context.Context, userID, publicID string) (*Conversation, error) {
	for _, conv := range r.items {
		if conv.UserID == userID && conv.PublicID == publicID {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "")
}

func (r *fakeConversationRepo) List(_ context.Context, userID string, filter ListFilter) ([]*Conversation, error) {
	var result []*Conversation
	for _, conv := range r.items {
		if conv.UserID != userID {
			continue
		}
		if conv.Archived() && !filter.IncludeArchived {
			continue
		}
		copied := *conv
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeConversationRepo) Update(_ context.Context, conv *Conversation) error {
	copied := *conv
	r.items[conv.ID] = &copied
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, conv *Conversation) error {
	delete(r.items, conv.ID)
	return nil
}

type fakeMessageRepo struct {
	nextID uint
	items  map[uint]*Message
	clock  time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{items: map[uint]*Message{}, clock: time.Now().UTC()}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *Message) error {
	if msg.PrevMessageID != nil {
		for _, existing := range r.items {
			if existing.ConversationID == msg.ConversationID && !existing.Deleted() &&
				existing.PrevMessageID != nil && *existing.PrevMessageID == *msg.PrevMessageID {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
					"duplicate predecessor", nil, "")
			}
		}
	}
	r.nextID++
	r.clock = r.clock.Add(time.Millisecond)
	msg.ID = r.nextID
	msg.CreatedAt = r.clock
	copied := *msg
	r.items[msg.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error) {
	for _, msg := range r.items {
		if msg.ConversationID == conversationID && msg.PublicID == publicID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"message not found", nil, "")
}

func (r *fakeMessageRepo) ListLive(_ context.Context, conversationID uint) ([]*Message, error) {
	var result []*Message
	for _, msg := range r.items {
		if msg.ConversationID == conversationID && !msg.Deleted() {
			copied := *msg
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeMessageRepo) LastLive(ctx context.Context, conversationID uint) (*Message, error) {
	live, _ := r.ListLive(ctx, conversationID)
	if len(live) == 0 {
		return nil, nil
	}
	return live[len(live)-1], nil
}

func (r *fakeMessageRepo) SoftDeleteFrom(_ context.Context, conversationID uint, cutoff time.Time) (int64, error) {
	var affected int64
	now := time.Now().UTC()
	for _, msg := range r.items {
		if msg.ConversationID == conversationID && !msg.Deleted() && !msg.CreatedAt.Before(cutoff) {
			msg.DeletedAt = &now
			affected++
		}
	}
	return affected, nil
}

type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *fakeConversationRepo, *fakeMessageRepo) {
	convs := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	return NewService(convs, msgs, fakeTransactor{}), convs, msgs
}

func TestAppendBuildsLinearChain(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, stringutils.DefaultTitle, conv.Title)
	assert.NotEmpty(t, conv.PublicID)

	user, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	assert.Nil(t, user.PrevMessageID)

	assistant, err := svc.Append(ctx, conv, AppendParams{
		Role:          RoleAssistant,
		Content:       "hi there",
		PrevMessageID: &user.ID,
		InputTokens:   5,
		OutputTokens:  2,
		TotalTokens:   7,
		Cost:          decimal.NewFromFloat(0.0003),
	})
	require.NoError(t, err)
	require.NotNil(t, assistant.PrevMessageID)
	assert.Equal(t, user.ID, *assistant.PrevMessageID)

	assert.Equal(t, 2, conv.MessageCount)
	assert.Equal(t, int64(7), conv.TotalTokens)
	assert.True(t, conv.TotalCost.Equal(decimal.NewFromFloat(0.0003)))
	require.NotNil(t, conv.LastMessageAt)

	chain, err := svc.LiveChain(ctx, conv)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, RoleUser, chain[0].Role)
	assert.Equal(t, RoleAssistant, chain[1].Role)
}

func TestAppendDuplicatePredecessorConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)

	user, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	_, err = svc.Append(ctx, conv, AppendParams{Role: RoleAssistant, Content: "first", PrevMessageID: &user.ID})
	require.NoError(t, err)

	_, err = svc.Append(ctx, conv, AppendParams{Role: RoleAssistant, Content: "second", PrevMessageID: &user.ID})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
}

func TestAppendRejectsInvalidRole(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{})
	require.NoError(t, err)

	_, err = svc.Append(ctx, conv, AppendParams{Role: Role("moderator"), Content: "x"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestTruncateFromSoftDeletesTail(t *testing.T) {
	svc, _, msgs := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{})
	require.NoError(t, err)

	u1, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "q1"})
	require.NoError(t, err)
	a1, err := svc.Append(ctx, conv, AppendParams{Role: RoleAssistant, Content: "a1", PrevMessageID: &u1.ID})
	require.NoError(t, err)
	u2, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "q2", PrevMessageID: &a1.ID})
	require.NoError(t, err)
	a2, err := svc.Append(ctx, conv, AppendParams{Role: RoleAssistant, Content: "a2", PrevMessageID: &u2.ID})
	require.NoError(t, err)

	survivor, err := svc.TruncateFrom(ctx, conv, u2.PublicID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	assert.Equal(t, a1.PublicID, survivor.PublicID)

	chain, err := svc.LiveChain(ctx, conv)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, u1.PublicID, chain[0].PublicID)
	assert.Equal(t, a1.PublicID, chain[1].PublicID)

	// soft-deleted rows stay in storage
	assert.Len(t, msgs.items, 4)
	assert.True(t, msgs.items[u2.ID].Deleted())
	assert.True(t, msgs.items[a2.ID].Deleted())

	// the chain can be re-extended at the survivor without a conflict
	_, err = svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "q2 edited", PrevMessageID: &survivor.ID})
	require.NoError(t, err)
}

func TestTruncateFromWholeChain(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{})
	require.NoError(t, err)
	u1, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "q1"})
	require.NoError(t, err)

	survivor, err := svc.TruncateFrom(ctx, conv, u1.PublicID)
	require.NoError(t, err)
	assert.Nil(t, survivor)
}

func TestTruncateFromDeletedAnchor(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{})
	require.NoError(t, err)
	u1, err := svc.Append(ctx, conv, AppendParams{Role: RoleUser, Content: "q1"})
	require.NoError(t, err)

	_, err = svc.TruncateFrom(ctx, conv, u1.PublicID)
	require.NoError(t, err)

	_, err = svc.TruncateFrom(ctx, conv, u1.PublicID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestSetTitleOnlyReplacesDefault(t *testing.T) {
	svc, convs, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "user-1", CreateParams{})
	require.NoError(t, err)

	require.NoError(t, svc.SetTitle(ctx, conv, "Generated Title"))
	assert.Equal(t, "Generated Title", convs.items[conv.ID].Title)

	require.NoError(t, svc.SetTitle(ctx, conv, "Another Title"))
	assert.Equal(t, "Generated Title", convs.items[conv.ID].Title)
}

func TestValidateChain(t *testing.T) {
	id := func(v uint) *uint { return &v }

	valid := []*Message{
		{ID: 1, PublicID: "m1"},
		{ID: 2, PublicID: "m2", PrevMessageID: id(1)},
		{ID: 3, PublicID: "m3", PrevMessageID: id(2)},
	}
	assert.NoError(t, ValidateChain(valid))
	assert.NoError(t, ValidateChain(nil))

	orphan := []*Message{
		{ID: 1, PublicID: "m1"},
		{ID: 2, PublicID: "m2"},
	}
	assert.Error(t, ValidateChain(orphan))

	skip := []*Message{
		{ID: 1, PublicID: "m1"},
		{ID: 3, PublicID: "m3", PrevMessageID: id(2)},
	}
	assert.Error(t, ValidateChain(skip))
}
