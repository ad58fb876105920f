package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/provider"
	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/infrastructure/inference"
	"parley-server/internal/utils/platformerrors"
	"parley-server/internal/utils/stringutils"
)

// fakeStore is an in-memory ConversationStore enforcing the live unique
// predecessor rule the database index provides in production.
type fakeStore struct {
	nextConvID uint
	nextMsgID  uint
	convs      map[string]*conversation.Conversation
	msgs       []*conversation.Message
	clock      time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{convs: map[string]*conversation.Conversation{}, clock: time.Now().UTC()}
}

func (f *fakeStore) Create(_ context.Context, userID string, params conversation.CreateParams) (*conversation.Conversation, error) {
	f.nextConvID++
	title := params.Title
	if title == "" {
		title = stringutils.DefaultTitle
	}
	conv := &conversation.Conversation{
		ID:           f.nextConvID,
		PublicID:     fmt.Sprintf("conv_%d", f.nextConvID),
		UserID:       userID,
		Title:        title,
		Provider:     params.Provider,
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		TotalCost:    decimal.Zero,
	}
	f.convs[conv.PublicID] = conv
	return conv, nil
}

func (f *fakeStore) Get(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
	conv, ok := f.convs[publicID]
	if !ok || conv.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"conversation not found", nil, "")
	}
	return conv, nil
}

func (f *fakeStore) LiveChain(_ context.Context, conv *conversation.Conversation) ([]*conversation.Message, error) {
	var live []*conversation.Message
	for _, msg := range f.msgs {
		if msg.ConversationID == conv.ID && !msg.Deleted() {
			live = append(live, msg)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })
	return live, nil
}

func (f *fakeStore) Append(ctx context.Context, conv *conversation.Conversation, params conversation.AppendParams) (*conversation.Message, error) {
	if params.PrevMessageID != nil {
		for _, existing := range f.msgs {
			if existing.ConversationID == conv.ID && !existing.Deleted() &&
				existing.PrevMessageID != nil && *existing.PrevMessageID == *params.PrevMessageID {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
					"another turn already extended this conversation", nil, "")
			}
		}
	}
	f.nextMsgID++
	f.clock = f.clock.Add(time.Millisecond)
	msg := &conversation.Message{
		ID:             f.nextMsgID,
		PublicID:       fmt.Sprintf("msg_%d", f.nextMsgID),
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
		CreatedAt:      f.clock,
	}
	f.msgs = append(f.msgs, msg)
	conv.MessageCount++
	conv.TotalTokens += int64(params.TotalTokens)
	return msg, nil
}

func (f *fakeStore) TruncateFrom(ctx context.Context, conv *conversation.Conversation, anchorPublicID string) (*conversation.Message, error) {
	var anchor *conversation.Message
	for _, msg := range f.msgs {
		if msg.ConversationID == conv.ID && msg.PublicID == anchorPublicID {
			anchor = msg
			break
		}
	}
	if anchor == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"anchor message not found", nil, "")
	}
	now := time.Now().UTC()
	for _, msg := range f.msgs {
		if msg.ConversationID == conv.ID && !msg.Deleted() && !msg.CreatedAt.Before(anchor.CreatedAt) {
			msg.DeletedAt = &now
		}
	}
	live, _ := f.LiveChain(ctx, conv)
	if len(live) == 0 {
		return nil, nil
	}
	return live[len(live)-1], nil
}

func (f *fakeStore) SetTitle(_ context.Context, conv *conversation.Conversation, title string) error {
	if title != "" && conv.Title == stringutils.DefaultTitle {
		conv.Title = title
	}
	return nil
}

func (f *fakeStore) assistantMessages(conv *conversation.Conversation) []*conversation.Message {
	var result []*conversation.Message
	for _, msg := range f.msgs {
		if msg.ConversationID == conv.ID && msg.Role == conversation.RoleAssistant && !msg.Deleted() {
			result = append(result, msg)
		}
	}
	return result
}

type fakeUsage struct {
	records []tokenusage.RecordParams
}

func (f *fakeUsage) Cost(_ string, inputTokens, outputTokens int) decimal.Decimal {
	return decimal.NewFromInt(int64(inputTokens + outputTokens))
}

func (f *fakeUsage) Record(_ context.Context, params tokenusage.RecordParams) (*tokenusage.Record, error) {
	f.records = append(f.records, params)
	return &tokenusage.Record{}, nil
}

type fakeSettings struct {
	err      error
	settings *provider.Settings
}

func (f *fakeSettings) Resolve(_ context.Context, _ provider.Kind) (*provider.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings, nil
}

// scriptedAdapter replays a canned SSE body and parses with a real vendor
// adapter's wire rules.
type scriptedAdapter struct {
	parser  inference.Adapter
	body    string
	openErr error
	title   string
}

func newScriptedAdapter(body string) *scriptedAdapter {
	return &scriptedAdapter{parser: inference.NewOpenAIAdapter(), body: body, title: "Scripted Title"}
}

func newScriptedAnthropicAdapter(body string) *scriptedAdapter {
	return &scriptedAdapter{parser: inference.NewAnthropicAdapter(), body: body, title: "Scripted Title"}
}

func (a *scriptedAdapter) Kind() provider.Kind { return provider.KindOpenAI }

func (a *scriptedAdapter) BuildRequest(params inference.RequestParams) (any, error) {
	return a.parser.BuildRequest(params)
}

func (a *scriptedAdapter) OpenStream(_ context.Context, _ *provider.Settings, _ inference.RequestParams) (*inference.Stream, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	return inference.NewStream(io.NopCloser(strings.NewReader(a.body)), inference.FramingSSE), nil
}

func (a *scriptedAdapter) ParseEvent(payload string) llmstream.Event {
	return a.parser.ParseEvent(payload)
}

func (a *scriptedAdapter) GetTitle(_ context.Context, _ *provider.Settings, _ string) (string, error) {
	return a.title, nil
}

func (a *scriptedAdapter) ListModels(_ context.Context, _ *provider.Settings) ([]inference.Model, error) {
	return nil, nil
}

type fakeAdapters struct {
	adapter inference.Adapter
}

func (f *fakeAdapters) Adapter(_ context.Context, _ provider.Kind) (inference.Adapter, error) {
	return f.adapter, nil
}

// captureEmitter records emitted events; failAfter simulates the client
// dropping the connection after that many chunks.
type captureEmitter struct {
	chunks    []string
	doneCount int
	errors    []error
	failAfter int
}

func (e *captureEmitter) Chunk(text string) error {
	if e.failAfter > 0 && len(e.chunks) >= e.failAfter {
		return errors.New("write on closed connection")
	}
	e.chunks = append(e.chunks, text)
	return nil
}

func (e *captureEmitter) Done() error {
	e.doneCount++
	return nil
}

func (e *captureEmitter) Error(err error) error {
	e.errors = append(e.errors, err)
	return nil
}

func testSettings() *provider.Settings {
	return &provider.Settings{
		Kind:    provider.KindOpenAI,
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "sk-test",
		Enabled: true,
	}
}

func newTurnService(store *fakeStore, usage *fakeUsage, adapter inference.Adapter) *Service {
	return NewService(
		&fakeSettings{settings: testSettings()},
		&fakeAdapters{adapter: adapter},
		store,
		usage,
		nil,
		5*time.Second,
		zerolog.Nop(),
	)
}

const happyBody = "data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n" +
	"data: {\"id\":\"chatcmpl-1\",\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n" +
	"data: [DONE]\n"

func TestRunTurnHappyPath(t *testing.T) {
	store := newFakeStore()
	usage := &fakeUsage{}
	svc := newTurnService(store, usage, newScriptedAdapter(happyBody))
	emitter := &captureEmitter{}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	require.NotNil(t, result.AssistantMessage)
	assert.Equal(t, "Hello world", result.AssistantMessage.Content)
	require.NotNil(t, result.AssistantMessage.PrevMessageID)
	assert.Equal(t, result.UserMessage.ID, *result.AssistantMessage.PrevMessageID)
	assert.Equal(t, 7, result.AssistantMessage.TotalTokens)

	assert.Equal(t, []string{"Hello", " world"}, emitter.chunks)
	assert.Equal(t, 1, emitter.doneCount)
	assert.Empty(t, emitter.errors)

	require.Len(t, usage.records, 1)
	assert.Equal(t, 5, usage.records[0].InputTokens)
	assert.Equal(t, "chatcmpl-1", usage.records[0].UpstreamRequestID)

	assert.Equal(t, "Scripted Title", result.Conversation.Title)
}

// Anthropic reports input tokens on message_start and only output tokens on
// message_delta; the final persisted total must still cover both.
const splitUsageBody = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"usage\":{\"input_tokens\":10}}}\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":5}}\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n"

func TestRunTurnUsageSplitAcrossEvents(t *testing.T) {
	store := newFakeStore()
	usage := &fakeUsage{}
	svc := newTurnService(store, usage, newScriptedAnthropicAdapter(splitUsageBody))
	emitter := &captureEmitter{}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindAnthropic,
		Model:    "claude-sonnet-4-20250514",
		Text:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 5, result.Usage.OutputTokens)
	assert.Equal(t, 15, result.Usage.TotalTokens)

	require.NotNil(t, result.AssistantMessage)
	assert.Equal(t, 15, result.AssistantMessage.TotalTokens)

	require.Len(t, usage.records, 1)
	assert.Equal(t, 10, usage.records[0].InputTokens)
	assert.Equal(t, 5, usage.records[0].OutputTokens)
	assert.Equal(t, 15, usage.records[0].TotalTokens)
	assert.Equal(t, "msg_1", usage.records[0].UpstreamRequestID)
}

func TestRunTurnEmptyStreamFails(t *testing.T) {
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(""))
	emitter := &captureEmitter{}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Equal(t, StateFailed, result.State)

	// user row survives, no assistant row
	require.NotNil(t, result.UserMessage)
	assert.False(t, result.UserMessage.Deleted())
	assert.Empty(t, store.assistantMessages(result.Conversation))
	require.Len(t, emitter.errors, 1)
}

func TestRunTurnMidStreamVendorError(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n" +
		"data: {\"error\":{\"type\":\"overloaded\",\"message\":\"try later\"}}\n"
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(body))
	emitter := &captureEmitter{}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)

	// relayed text is not retracted even though nothing was persisted
	assert.Equal(t, []string{"partial"}, emitter.chunks)
	assert.Empty(t, store.assistantMessages(result.Conversation))
}

func TestRunTurnClientDisconnectStillFinalizes(t *testing.T) {
	store := newFakeStore()
	usage := &fakeUsage{}
	svc := newTurnService(store, usage, newScriptedAdapter(happyBody))
	emitter := &captureEmitter{failAfter: 1}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	// the full reply was persisted even though the client saw one chunk
	require.NotNil(t, result.AssistantMessage)
	assert.Equal(t, "Hello world", result.AssistantMessage.Content)
	assert.Equal(t, []string{"Hello"}, emitter.chunks)
	assert.Zero(t, emitter.doneCount)
	require.Len(t, usage.records, 1)
}

func TestRunTurnUsagelessStreamCompletes(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		"data: [DONE]\n"
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(body))
	emitter := &captureEmitter{}

	result, err := svc.RunTurn(context.Background(), emitter, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Zero(t, result.Usage.TotalTokens)
	assert.Equal(t, "ok", result.AssistantMessage.Content)
}

func TestRunTurnProviderNotConfigured(t *testing.T) {
	notConfigured := platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
		platformerrors.ErrorTypeNotFound, "provider not configured: openai", nil, "")
	store := newFakeStore()
	svc := NewService(
		&fakeSettings{err: notConfigured},
		&fakeAdapters{adapter: newScriptedAdapter(happyBody)},
		store,
		&fakeUsage{},
		nil,
		time.Second,
		zerolog.Nop(),
	)

	result, err := svc.RunTurn(context.Background(), &captureEmitter{}, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	assert.Equal(t, StateInit, result.State)
	assert.Empty(t, store.msgs)
}

func TestRunTurnModelNotAllowed(t *testing.T) {
	settings := testSettings()
	settings.AllowedModels = []string{"gpt-4o-mini"}
	store := newFakeStore()
	svc := NewService(
		&fakeSettings{settings: settings},
		&fakeAdapters{adapter: newScriptedAdapter(happyBody)},
		store,
		&fakeUsage{},
		nil,
		time.Second,
		zerolog.Nop(),
	)

	_, err := svc.RunTurn(context.Background(), &captureEmitter{}, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "hi",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	assert.Empty(t, store.msgs)
}

func seedTurn(t *testing.T, svc *Service, store *fakeStore) *Result {
	t.Helper()
	result, err := svc.RunTurn(context.Background(), &captureEmitter{}, Params{
		UserID:   "user-1",
		Provider: provider.KindOpenAI,
		Model:    "gpt-4o",
		Text:     "original question",
	})
	require.NoError(t, err)
	require.NotNil(t, result.AssistantMessage)
	return result
}

func TestRegenerateAtAssistantAnchor(t *testing.T) {
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(happyBody))
	seeded := seedTurn(t, svc, store)

	emitter := &captureEmitter{}
	result, err := svc.Regenerate(context.Background(), emitter, RegenerateParams{
		UserID:          "user-1",
		ConversationID:  seeded.Conversation.PublicID,
		AnchorMessageID: seeded.AssistantMessage.PublicID,
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	// no new user row: the surviving user turn is reused
	assert.Equal(t, seeded.UserMessage.ID, result.UserMessage.ID)
	require.NotNil(t, result.AssistantMessage.PrevMessageID)
	assert.Equal(t, seeded.UserMessage.ID, *result.AssistantMessage.PrevMessageID)

	// the old assistant row is soft-deleted, the chain has exactly one live assistant
	live := store.assistantMessages(result.Conversation)
	require.Len(t, live, 1)
	assert.Equal(t, result.AssistantMessage.ID, live[0].ID)
}

func TestRegenerateEditAtUserAnchor(t *testing.T) {
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(happyBody))
	seeded := seedTurn(t, svc, store)

	result, err := svc.Regenerate(context.Background(), &captureEmitter{}, RegenerateParams{
		UserID:          "user-1",
		ConversationID:  seeded.Conversation.PublicID,
		AnchorMessageID: seeded.UserMessage.PublicID,
		Text:            "edited question",
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	assert.NotEqual(t, seeded.UserMessage.ID, result.UserMessage.ID)
	assert.Equal(t, "edited question", result.UserMessage.Content)

	chain, err := store.LiveChain(context.Background(), result.Conversation)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "edited question", chain[0].Content)
	require.NoError(t, conversation.ValidateChain(chain))
}

func TestRegenerateAtUserAnchorWithoutTextRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(happyBody))
	seeded := seedTurn(t, svc, store)

	_, err := svc.Regenerate(context.Background(), &captureEmitter{}, RegenerateParams{
		UserID:          "user-1",
		ConversationID:  seeded.Conversation.PublicID,
		AnchorMessageID: seeded.UserMessage.PublicID,
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestConcurrentChainExtensionConflicts(t *testing.T) {
	store := newFakeStore()
	svc := newTurnService(store, &fakeUsage{}, newScriptedAdapter(happyBody))
	seeded := seedTurn(t, svc, store)

	// a second assistant row behind the same user turn must conflict
	_, err := store.Append(context.Background(), seeded.Conversation, conversation.AppendParams{
		PrevMessageID: &seeded.UserMessage.ID,
		Role:          conversation.RoleAssistant,
		Content:       "racing reply",
		Cost:          decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
	assert.Len(t, store.assistantMessages(seeded.Conversation), 1)
}
