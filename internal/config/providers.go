package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"parley-server/internal/infrastructure/logger"
)

// ProviderConfigEntry describes one upstream LLM vendor account.
type ProviderConfigEntry struct {
	Key           string   `yaml:"key"`
	Enabled       bool     `yaml:"enabled"`
	BaseURL       string   `yaml:"base_url"`
	APIKey        string   `yaml:"api_key"`
	AllowedModels []string `yaml:"allowed_models"`
	TitleModel    string   `yaml:"title_model"`
}

// ProviderConfigs maintains the configured vendor accounts keyed by provider key.
type ProviderConfigs struct {
	entries map[string]ProviderConfigEntry
}

// Entry returns the entry for a provider key, if configured.
func (c *ProviderConfigs) Entry(key string) (ProviderConfigEntry, bool) {
	if c == nil {
		return ProviderConfigEntry{}, false
	}
	entry, ok := c.entries[strings.ToLower(strings.TrimSpace(key))]
	return entry, ok
}

// Entries returns all configured entries.
func (c *ProviderConfigs) Entries() []ProviderConfigEntry {
	if c == nil {
		return nil
	}
	result := make([]ProviderConfigEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry)
	}
	return result
}

type providerConfigDocument struct {
	Providers []ProviderConfigEntry `yaml:"providers"`
}

// LoadProviderConfigs parses the yaml file at the provided path. A missing
// file yields an empty config set rather than an error so the gateway can
// start with every provider reported as not configured.
func LoadProviderConfigs(path string) (*ProviderConfigs, error) {
	log := logger.GetLogger()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", cleanPath).Msg("provider config file not found, no providers configured")
			return &ProviderConfigs{entries: map[string]ProviderConfigEntry{}}, nil
		}
		return nil, fmt.Errorf("read provider config %q: %w", cleanPath, err)
	}

	var doc providerConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider config %q: %w", cleanPath, err)
	}

	result := &ProviderConfigs{entries: make(map[string]ProviderConfigEntry, len(doc.Providers))}
	for idx, entry := range doc.Providers {
		key := strings.ToLower(strings.TrimSpace(entry.Key))
		if key == "" {
			return nil, fmt.Errorf("providers[%d]: key is required", idx)
		}
		entry.Key = key
		// Secrets stay out of the file: ${VAR} references resolve from the
		// environment at load time.
		entry.APIKey = os.ExpandEnv(entry.APIKey)
		entry.BaseURL = os.ExpandEnv(entry.BaseURL)
		log.Info().
			Str("provider", key).
			Bool("enabled", entry.Enabled).
			Str("base_url", entry.BaseURL).
			Int("allowed_models", len(entry.AllowedModels)).
			Msg("loaded provider config")
		result.entries[key] = entry
	}

	return result, nil
}
