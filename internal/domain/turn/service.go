package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/domain/llmstream"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/infrastructure/inference"
	"parley-server/internal/infrastructure/observability"
	"parley-server/internal/utils/platformerrors"
	"parley-server/internal/utils/stringutils"

	"github.com/shopspring/decimal"
)

const tracerName = "turn"

// State is the orchestrator's position in one chat turn.
type State string

const (
	StateInit                 State = "init"
	StateAttachmentsResolved  State = "attachments_resolved"
	StateUserMessagePersisted State = "user_message_persisted"
	StateUpstreamOpen         State = "upstream_open"
	StateRelaying             State = "relaying"
	StateFinalizing           State = "finalizing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Emitter is the client-facing event channel for one turn. The orchestrator
// assumes nothing about the transport beyond named events and the error
// return signalling a disconnect.
type Emitter interface {
	Chunk(text string) error
	Done() error
	Error(err error) error
}

// SettingsResolver resolves vendor settings before any network call.
type SettingsResolver interface {
	Resolve(ctx context.Context, kind provider.Kind) (*provider.Settings, error)
}

// AdapterResolver dispatches to the vendor adapter for a provider kind.
type AdapterResolver interface {
	Adapter(ctx context.Context, kind provider.Kind) (inference.Adapter, error)
}

// ConversationStore is the chain persistence surface the orchestrator uses.
type ConversationStore interface {
	Create(ctx context.Context, userID string, params conversation.CreateParams) (*conversation.Conversation, error)
	Get(ctx context.Context, userID, publicID string) (*conversation.Conversation, error)
	LiveChain(ctx context.Context, conv *conversation.Conversation) ([]*conversation.Message, error)
	Append(ctx context.Context, conv *conversation.Conversation, params conversation.AppendParams) (*conversation.Message, error)
	TruncateFrom(ctx context.Context, conv *conversation.Conversation, anchorPublicID string) (*conversation.Message, error)
	SetTitle(ctx context.Context, conv *conversation.Conversation, title string) error
}

// UsageRecorder prices and persists per-turn token accounting.
type UsageRecorder interface {
	Cost(model string, inputTokens, outputTokens int) decimal.Decimal
	Record(ctx context.Context, params tokenusage.RecordParams) (*tokenusage.Record, error)
}

// FileResolver turns attachment references into prompt files. Failures are
// attachment-scoped: unresolvable files are dropped, not fatal.
type FileResolver interface {
	Resolve(ctx context.Context, settings *provider.Settings, fileIDs []string) []prompt.File
}

// Params describes one chat turn request.
type Params struct {
	UserID         string
	ConversationID string
	Provider       provider.Kind
	Model          string
	Text           string
	SystemPrompt   string
	FileIDs        []string
	Temperature    *float32
	MaxTokens      int
}

// RegenerateParams describes an edit/regenerate request. Text is the
// replacement user turn for edits; empty Text regenerates the answer to the
// surviving user turn.
type RegenerateParams struct {
	UserID          string
	ConversationID  string
	AnchorMessageID string
	Text            string
	Temperature     *float32
	MaxTokens       int
}

// Result reports how a turn ended.
type Result struct {
	State            State
	Conversation     *conversation.Conversation
	UserMessage      *conversation.Message
	AssistantMessage *conversation.Message
	Usage            llmstream.Usage
	LatencyMS        int64
}

// Service orchestrates one chat turn end to end: persist the user message,
// open the upstream stream, relay canonical events, and persist the finished
// assistant message exactly once however the stream ends.
type Service struct {
	providers     SettingsResolver
	adapters      AdapterResolver
	conversations ConversationStore
	usage         UsageRecorder
	files         FileResolver
	streamTimeout time.Duration
	log           zerolog.Logger
}

// NewService wires the turn orchestrator.
func NewService(
	providers SettingsResolver,
	adapters AdapterResolver,
	conversations ConversationStore,
	usage UsageRecorder,
	files FileResolver,
	streamTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	if streamTimeout <= 0 {
		streamTimeout = 120 * time.Second
	}
	return &Service{
		providers:     providers,
		adapters:      adapters,
		conversations: conversations,
		usage:         usage,
		files:         files,
		streamTimeout: streamTimeout,
		log:           log,
	}
}

// RunTurn executes one chat turn. Errors before the upstream stream opens
// are returned without any assistant-side writes; errors after partial relay
// never retract text the client has already seen.
func (s *Service) RunTurn(ctx context.Context, emitter Emitter, params Params) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "turn.run")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("provider", string(params.Provider)),
		attribute.String("model", params.Model),
	)

	// Init: fail fast on configuration before touching anything.
	settings, err := s.providers.Resolve(ctx, params.Provider)
	if err != nil {
		observability.RecordError(ctx, err)
		return &Result{State: StateInit}, err
	}
	if !settings.AllowsModel(params.Model) {
		err := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			fmt.Sprintf("model not allowed for provider %s: %s", params.Provider, params.Model), nil,
			"4b5c6d7e-8f9a-4b0c-8d1e-2f3a4b5c6d7e")
		observability.RecordError(ctx, err)
		return &Result{State: StateInit}, err
	}
	adapter, err := s.adapters.Adapter(ctx, params.Provider)
	if err != nil {
		return &Result{State: StateInit}, err
	}

	conv, err := s.resolveConversation(ctx, params)
	if err != nil {
		return &Result{State: StateInit}, err
	}

	return s.run(ctx, emitter, adapter, settings, conv, params)
}

// Regenerate truncates the chain at the anchor and re-runs the orchestrator
// from the last surviving message.
func (s *Service) Regenerate(ctx context.Context, emitter Emitter, params RegenerateParams) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "turn.regenerate")
	defer span.End()

	conv, err := s.conversations.Get(ctx, params.UserID, params.ConversationID)
	if err != nil {
		return &Result{State: StateInit}, err
	}

	if _, err := s.conversations.TruncateFrom(ctx, conv, params.AnchorMessageID); err != nil {
		observability.RecordError(ctx, err)
		return &Result{State: StateInit}, err
	}

	kind, ok := provider.ParseKind(conv.Provider)
	if !ok {
		return &Result{State: StateInit}, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeInternal, fmt.Sprintf("conversation has unknown provider: %s", conv.Provider),
			nil, "8f9a0b1c-2d3e-4f4a-8b5c-6d7e8f9a0b1c")
	}

	settings, err := s.providers.Resolve(ctx, kind)
	if err != nil {
		return &Result{State: StateInit}, err
	}
	adapter, err := s.adapters.Adapter(ctx, kind)
	if err != nil {
		return &Result{State: StateInit}, err
	}

	return s.run(ctx, emitter, adapter, settings, conv, Params{
		UserID:      params.UserID,
		Provider:    kind,
		Model:       conv.Model,
		Text:        params.Text,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
}

func (s *Service) resolveConversation(ctx context.Context, params Params) (*conversation.Conversation, error) {
	if params.ConversationID == "" {
		return s.conversations.Create(ctx, params.UserID, conversation.CreateParams{
			Provider:     string(params.Provider),
			Model:        params.Model,
			SystemPrompt: params.SystemPrompt,
		})
	}
	conv, err := s.conversations.Get(ctx, params.UserID, params.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.Archived() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"conversation is archived", nil, "0b1c2d3e-4f5a-4b6c-8d7e-8f9a0b1c2d3e")
	}
	return conv, nil
}

func (s *Service) run(
	ctx context.Context,
	emitter Emitter,
	adapter inference.Adapter,
	settings *provider.Settings,
	conv *conversation.Conversation,
	params Params,
) (*Result, error) {
	// AttachmentsResolved: failures here are attachment-scoped and already
	// handled inside the resolver.
	var files []prompt.File
	if len(params.FileIDs) > 0 && s.files != nil {
		files = s.files.Resolve(ctx, settings, params.FileIDs)
	}

	chain, err := s.conversations.LiveChain(ctx, conv)
	if err != nil {
		return &Result{State: StateAttachmentsResolved, Conversation: conv}, err
	}

	builder := prompt.NewBuilder().WithSystem(conv.SystemPrompt)
	for _, msg := range chain {
		switch msg.Role {
		case conversation.RoleUser:
			builder.Append(prompt.RoleUser, msg.Content)
		case conversation.RoleAssistant:
			builder.Append(prompt.RoleAssistant, msg.Content)
		}
	}

	// UserMessagePersisted: the user's input survives any later failure.
	// An empty Text continues from an existing user turn (regenerate).
	var userMsg *conversation.Message
	if params.Text != "" {
		var prevID *uint
		if len(chain) > 0 {
			prevID = &chain[len(chain)-1].ID
		}
		var metadata map[string]any
		if len(params.FileIDs) > 0 {
			metadata = map[string]any{"attachments": params.FileIDs}
		}
		userMsg, err = s.conversations.Append(ctx, conv, conversation.AppendParams{
			PrevMessageID: prevID,
			Role:          conversation.RoleUser,
			Content:       params.Text,
			Provider:      string(params.Provider),
			Model:         params.Model,
			Metadata:      metadata,
			Cost:          decimal.Zero,
		})
		if err != nil {
			return &Result{State: StateAttachmentsResolved, Conversation: conv}, err
		}
		builder.Append(prompt.RoleUser, params.Text, files...)
	} else {
		if len(chain) == 0 || chain[len(chain)-1].Role != conversation.RoleUser {
			return &Result{State: StateAttachmentsResolved, Conversation: conv},
				platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
					"no user turn to answer; provide message text", nil, "2d3e4f5a-6b7c-4d8e-8f9a-0b1c2d3e4f5a")
		}
		userMsg = chain[len(chain)-1]
	}

	// UpstreamOpen. The upstream context deliberately survives a client
	// disconnect: once a stream is open it is drained and finalized
	// server-side so the chain is never left with an unfinished turn.
	upstreamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.streamTimeout)
	defer cancel()

	start := time.Now()
	stream, err := adapter.OpenStream(upstreamCtx, settings, inference.RequestParams{
		Model:       params.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Transcript:  builder.Build(),
	})
	if err != nil {
		observability.RecordError(ctx, err)
		return &Result{State: StateFailed, Conversation: conv, UserMessage: userMsg}, err
	}
	defer stream.Close()

	// Relaying.
	sink := newClientSink(emitter, s.log)
	var text strings.Builder
	var usage llmstream.Usage
	sawDone := false
	var upstreamErr error

	for {
		payload, recvErr := stream.Recv()
		if recvErr != nil {
			if !errors.Is(recvErr, io.EOF) {
				upstreamErr = platformerrors.NewError(upstreamCtx, platformerrors.LayerDomain,
					platformerrors.ErrorTypeExternal, "upstream stream read failed", recvErr,
					"6b7c8d9e-0f1a-4b2c-8d3e-4f5a6b7c8d9e")
			}
			break
		}

		event := adapter.ParseEvent(payload)
		switch event.Kind {
		case llmstream.KindMessageStart:
			if usage.RequestID == "" {
				usage.RequestID = event.RequestID
			}
			foldUsage(&usage, event.Usage)
		case llmstream.KindTextDelta:
			text.WriteString(event.Text)
			foldUsage(&usage, event.Usage)
			sink.chunk(event.Text)
		case llmstream.KindUsage:
			foldUsage(&usage, event.Usage)
		case llmstream.KindError:
			upstreamErr = platformerrors.NewError(upstreamCtx, platformerrors.LayerDomain,
				platformerrors.ErrorTypeExternal,
				fmt.Sprintf("upstream error: %s: %s", event.Err.Code, event.Err.Message), nil,
				"8d9e0f1a-2b3c-4d4e-8f5a-6b7c8d9e0f1a")
		case llmstream.KindDone:
			if event.Text != "" {
				text.WriteString(event.Text)
				sink.chunk(event.Text)
			}
			foldUsage(&usage, event.Usage)
			if usage.RequestID == "" {
				usage.RequestID = event.RequestID
			}
			sawDone = true
		}

		if upstreamErr != nil || sawDone {
			break
		}
	}

	if upstreamErr == nil && !sawDone {
		upstreamErr = platformerrors.NewError(upstreamCtx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal, "upstream stream ended without terminal marker", nil,
			"0f1a2b3c-4d5e-4f6a-8b7c-8d9e0f1a2b3c")
	}
	if upstreamErr != nil {
		observability.RecordError(ctx, upstreamErr)
		sink.fail(upstreamErr)
		return &Result{State: StateFailed, Conversation: conv, UserMessage: userMsg, Usage: usage}, upstreamErr
	}

	// Finalizing runs detached from the request context for the same reason
	// the drain does: a disconnected client must not skip persistence.
	finalizeCtx := context.WithoutCancel(ctx)
	latency := time.Since(start).Milliseconds()
	cost := s.usage.Cost(params.Model, usage.InputTokens, usage.OutputTokens)

	var metadata map[string]any
	if usage.RequestID != "" {
		metadata = map[string]any{"upstream_request_id": usage.RequestID}
	}
	assistant, err := s.conversations.Append(finalizeCtx, conv, conversation.AppendParams{
		PrevMessageID: &userMsg.ID,
		Role:          conversation.RoleAssistant,
		Content:       text.String(),
		Provider:      string(params.Provider),
		Model:         params.Model,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		TotalTokens:   usage.TotalTokens,
		LatencyMS:     latency,
		Cost:          cost,
		Metadata:      metadata,
	})
	if err != nil {
		observability.RecordError(ctx, err)
		sink.fail(err)
		return &Result{State: StateFailed, Conversation: conv, UserMessage: userMsg, Usage: usage, LatencyMS: latency}, err
	}

	if _, err := s.usage.Record(finalizeCtx, tokenusage.RecordParams{
		UserID:            params.UserID,
		ConversationID:    conv.ID,
		MessageID:         &assistant.ID,
		Provider:          string(params.Provider),
		Model:             params.Model,
		UpstreamRequestID: usage.RequestID,
		InputTokens:       usage.InputTokens,
		OutputTokens:      usage.OutputTokens,
		TotalTokens:       usage.TotalTokens,
		Cost:              cost,
	}); err != nil {
		// usage rows are accounting, not chain state
		s.log.Warn().Err(err).Str("conversation", conv.PublicID).Msg("unable to record token usage")
	}

	s.maybeTitle(finalizeCtx, adapter, settings, conv, userMsg.Content)

	sink.done()
	observability.AddSpanAttributes(ctx,
		attribute.Int("usage.total_tokens", usage.TotalTokens),
		attribute.Int64("latency_ms", latency),
	)

	return &Result{
		State:            StateCompleted,
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistant,
		Usage:            usage,
		LatencyMS:        latency,
	}, nil
}

// maybeTitle names a still-untitled conversation after its first turn. The
// vendor call is best effort with a local truncation fallback.
func (s *Service) maybeTitle(ctx context.Context, adapter inference.Adapter, settings *provider.Settings, conv *conversation.Conversation, userText string) {
	if conv.Title != stringutils.DefaultTitle {
		return
	}

	title, err := adapter.GetTitle(ctx, settings, userText)
	if err != nil || title == "" {
		if err != nil {
			s.log.Warn().Err(err).Str("conversation", conv.PublicID).Msg("title generation failed, falling back")
		}
		title = stringutils.TitleFromText(userText)
	}
	if err := s.conversations.SetTitle(ctx, conv, title); err != nil {
		s.log.Warn().Err(err).Str("conversation", conv.PublicID).Msg("unable to store conversation title")
	}
}

func foldUsage(into *llmstream.Usage, from *llmstream.Usage) {
	if from == nil {
		return
	}
	if from.RequestID != "" {
		into.RequestID = from.RequestID
	}
	if from.InputTokens > 0 {
		into.InputTokens = from.InputTokens
	}
	if from.OutputTokens > 0 {
		into.OutputTokens = from.OutputTokens
	}
	if from.TotalTokens > 0 {
		into.TotalTokens = from.TotalTokens
	}
	// Some vendors split the counts across events: input tokens arrive with the
	// stream opener and later usage frames carry output only. Never let such a
	// partial total shadow the accumulated counts.
	if sum := into.InputTokens + into.OutputTokens; into.TotalTokens < sum {
		into.TotalTokens = sum
	}
}

// clientSink shields the relay loop from the client connection: once a write
// fails the client is treated as gone and the drain continues silently.
type clientSink struct {
	emitter Emitter
	log     zerolog.Logger
	alive   bool
}

func newClientSink(emitter Emitter, log zerolog.Logger) *clientSink {
	return &clientSink{emitter: emitter, log: log, alive: emitter != nil}
}

func (c *clientSink) chunk(text string) {
	if !c.alive {
		return
	}
	if err := c.emitter.Chunk(text); err != nil {
		c.alive = false
		c.log.Debug().Err(err).Msg("client disconnected mid-stream, continuing drain")
	}
}

func (c *clientSink) done() {
	if !c.alive {
		return
	}
	if err := c.emitter.Done(); err != nil {
		c.alive = false
	}
}

func (c *clientSink) fail(failure error) {
	if !c.alive {
		return
	}
	if err := c.emitter.Error(failure); err != nil {
		c.alive = false
	}
}
