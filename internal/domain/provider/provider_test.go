package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/config"
	"parley-server/internal/utils/platformerrors"
)

const registryFixture = `providers:
  - key: openai
    enabled: true
    base_url: https://gateway.internal/openai/
    api_key: sk-test
    title_model: gpt-4o-mini
    allowed_models:
      - gpt-4o
      - gpt-4o-mini
  - key: anthropic
    enabled: false
    api_key: sk-ant
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yml")
	require.NoError(t, os.WriteFile(path, []byte(registryFixture), 0o600))

	configs, err := config.LoadProviderConfigs(path)
	require.NoError(t, err)
	return NewRegistry(&config.Config{Providers: configs})
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind(" OpenAI ")
	assert.True(t, ok)
	assert.Equal(t, KindOpenAI, kind)

	_, ok = ParseKind("mystery-vendor")
	assert.False(t, ok)
}

func TestRegistryResolve(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	settings, err := registry.Resolve(ctx, KindOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.internal/openai", settings.BaseURL)
	assert.Equal(t, "sk-test", settings.APIKey)
	assert.True(t, settings.AllowsModel("GPT-4o"))
	assert.False(t, settings.AllowsModel("o3"))

	_, err = registry.Resolve(ctx, KindAnthropic)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = registry.Resolve(ctx, KindGroq)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestRegistryResolveForModel(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	settings, err := registry.Resolve(ctx, KindOpenAI)
	require.NoError(t, err)
	assert.NotNil(t, settings)

	resolved, err := registry.ResolveForModel(ctx, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, resolved.Kind)

	_, err = registry.ResolveForModel(ctx, "claude-sonnet-4-20250514")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestRegistryEnabledSettings(t *testing.T) {
	registry := newTestRegistry(t)

	enabled := registry.EnabledSettings(context.Background())
	require.Len(t, enabled, 1)
	assert.Equal(t, KindOpenAI, enabled[0].Kind)
}
