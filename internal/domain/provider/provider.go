package provider

import (
	"context"
	"fmt"
	"strings"

	"parley-server/internal/config"
	"parley-server/internal/utils/platformerrors"
)

// Kind identifies an upstream LLM vendor.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
	KindGroq      Kind = "groq"
)

// Kinds lists every vendor the gateway can talk to.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindAnthropic, KindGemini, KindGroq}
}

// ParseKind normalizes a provider key into a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindOpenAI:
		return KindOpenAI, true
	case KindAnthropic:
		return KindAnthropic, true
	case KindGemini:
		return KindGemini, true
	case KindGroq:
		return KindGroq, true
	}
	return "", false
}

var defaultBaseURLs = map[Kind]string{
	KindOpenAI:    "https://api.openai.com/v1",
	KindAnthropic: "https://api.anthropic.com/v1",
	KindGemini:    "https://generativelanguage.googleapis.com/v1beta",
	KindGroq:      "https://api.groq.com/openai/v1",
}

// Settings carries the resolved account configuration for one vendor.
type Settings struct {
	Kind          Kind
	BaseURL       string
	APIKey        string
	AllowedModels []string
	TitleModel    string
	Enabled       bool
}

// AllowsModel reports whether the model is on the vendor's allow-list.
// An empty allow-list permits any model.
func (s *Settings) AllowsModel(model string) bool {
	if len(s.AllowedModels) == 0 {
		return true
	}
	for _, allowed := range s.AllowedModels {
		if strings.EqualFold(allowed, model) {
			return true
		}
	}
	return false
}

// Registry resolves vendor settings from configuration. It is the gateway's
// single source of provider credentials: every lookup happens before any
// network call so missing or disabled vendors fail fast with typed errors.
type Registry struct {
	configs *config.ProviderConfigs
}

// NewRegistry builds a settings registry from loaded configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{configs: cfg.Providers}
}

// Resolve returns the settings for a provider key, or a typed error when the
// provider is not configured or disabled.
func (r *Registry) Resolve(ctx context.Context, kind Kind) (*Settings, error) {
	entry, ok := r.configs.Entry(string(kind))
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("provider not configured: %s", kind), nil, "4f1c9a2e-8d3b-4e5f-a6c7-1b2d3e4f5a6b")
	}
	if !entry.Enabled {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			fmt.Sprintf("provider disabled: %s", kind), nil, "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d")
	}

	settings := &Settings{
		Kind:          kind,
		BaseURL:       strings.TrimRight(strings.TrimSpace(entry.BaseURL), "/"),
		APIKey:        entry.APIKey,
		AllowedModels: entry.AllowedModels,
		TitleModel:    entry.TitleModel,
		Enabled:       entry.Enabled,
	}
	if settings.BaseURL == "" {
		settings.BaseURL = defaultBaseURLs[kind]
	}
	return settings, nil
}

// ResolveForModel finds the first enabled provider whose allow-list admits
// the model. Used when a request names a model without a provider key.
func (r *Registry) ResolveForModel(ctx context.Context, model string) (*Settings, error) {
	for _, kind := range Kinds() {
		settings, err := r.Resolve(ctx, kind)
		if err != nil {
			continue
		}
		if len(settings.AllowedModels) > 0 && settings.AllowsModel(model) {
			return settings, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("no configured provider serves model: %s", model), nil, "2c3d4e5f-6a7b-4c8d-9e0f-1a2b3c4d5e6f")
}

// EnabledSettings returns the settings of every enabled provider.
func (r *Registry) EnabledSettings(ctx context.Context) []*Settings {
	var result []*Settings
	for _, kind := range Kinds() {
		settings, err := r.Resolve(ctx, kind)
		if err != nil {
			continue
		}
		result = append(result, settings)
	}
	return result
}
