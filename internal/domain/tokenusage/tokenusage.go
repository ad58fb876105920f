package tokenusage

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parley-server/internal/utils/idgen"
	"parley-server/internal/utils/platformerrors"
)

const usageIDPrefix = "usage"

// Record is one turn's vendor-reported token accounting, written during turn
// finalization. Absence of vendor usage is legal; such turns record zeros.
type Record struct {
	ID                uint
	PublicID          string
	UserID            string
	ConversationID    uint
	MessageID         *uint
	Provider          string
	Model             string
	UpstreamRequestID string
	InputTokens       int
	OutputTokens      int
	TotalTokens       int
	Cost              decimal.Decimal
	CreatedAt         time.Time
}

// Summary aggregates a user's usage over a period.
type Summary struct {
	TurnCount         int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
	TotalCost         decimal.Decimal
}

// Repository persists usage records.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	SummarizeByUser(ctx context.Context, userID string, since time.Time) (*Summary, error)
}

// Rate prices a model in USD per one million tokens.
type Rate struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// defaultRates covers the commonly routed models. Unlisted models cost zero
// rather than failing the turn; pricing gaps are an accounting concern, not
// a gateway one.
var defaultRates = map[string]Rate{
	"gpt-4o":                    {InputPerMillion: decimal.NewFromFloat(2.50), OutputPerMillion: decimal.NewFromFloat(10.00)},
	"gpt-4o-mini":               {InputPerMillion: decimal.NewFromFloat(0.15), OutputPerMillion: decimal.NewFromFloat(0.60)},
	"claude-sonnet-4-20250514":  {InputPerMillion: decimal.NewFromFloat(3.00), OutputPerMillion: decimal.NewFromFloat(15.00)},
	"claude-3-5-haiku-20241022": {InputPerMillion: decimal.NewFromFloat(0.80), OutputPerMillion: decimal.NewFromFloat(4.00)},
	"gemini-2.0-flash":          {InputPerMillion: decimal.NewFromFloat(0.10), OutputPerMillion: decimal.NewFromFloat(0.40)},
	"llama-3.3-70b-versatile":   {InputPerMillion: decimal.NewFromFloat(0.59), OutputPerMillion: decimal.NewFromFloat(0.79)},
}

// Service records usage rows and prices turns from the rate table.
type Service struct {
	records Repository
	rates   map[string]Rate
}

// NewService wires the usage service with the default rate table.
func NewService(records Repository) *Service {
	return &Service{records: records, rates: defaultRates}
}

// Cost prices vendor-reported token counts for a model. Unknown models
// price at zero.
func (s *Service) Cost(model string, inputTokens, outputTokens int) decimal.Decimal {
	rate, ok := s.rates[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return decimal.Zero
	}
	input := decimal.NewFromInt(int64(inputTokens)).Mul(rate.InputPerMillion).Div(million)
	output := decimal.NewFromInt(int64(outputTokens)).Mul(rate.OutputPerMillion).Div(million)
	return input.Add(output)
}

// RecordParams describes one turn's usage.
type RecordParams struct {
	UserID            string
	ConversationID    uint
	MessageID         *uint
	Provider          string
	Model             string
	UpstreamRequestID string
	InputTokens       int
	OutputTokens      int
	TotalTokens       int
	Cost              decimal.Decimal
}

// Record persists one usage row.
func (s *Service) Record(ctx context.Context, params RecordParams) (*Record, error) {
	record := &Record{
		PublicID:          idgen.MustGenerateSecureID(usageIDPrefix, 16),
		UserID:            params.UserID,
		ConversationID:    params.ConversationID,
		MessageID:         params.MessageID,
		Provider:          params.Provider,
		Model:             params.Model,
		UpstreamRequestID: params.UpstreamRequestID,
		InputTokens:       params.InputTokens,
		OutputTokens:      params.OutputTokens,
		TotalTokens:       params.TotalTokens,
		Cost:              params.Cost,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "record token usage")
	}
	return record, nil
}

// SummaryForUser aggregates the user's usage since the given time.
func (s *Service) SummaryForUser(ctx context.Context, userID string, since time.Time) (*Summary, error) {
	summary, err := s.records.SummarizeByUser(ctx, userID, since)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "summarize token usage")
	}
	return summary, nil
}
