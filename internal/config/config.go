package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton kept for components that cannot take injected config.
var globalConfig *Config

// Config holds all environment backed configuration for the chat gateway.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// PostgreSQL read replica (optional)
	DBPostgresqlReadDSN string `env:"DB_POSTGRESQL_READ_DSN"`

	// Auth: token validation only; login flows live in the identity service.
	// When JWKS_URL is empty the gateway runs in development mode and trusts
	// the X-User-Id header.
	JWKSURL             string        `env:"JWKS_URL"`
	Issuer              string        `env:"ISSUER"`
	Audience            string        `env:"AUDIENCE"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`

	// Providers
	ProviderConfigFile string `env:"PROVIDER_CONFIG_FILE" envDefault:"config/providers.yml"`

	// Model Sync
	ModelSyncIntervalMinutes int  `env:"MODEL_SYNC_INTERVAL_MINUTES" envDefault:"60"`
	ModelSyncEnabled         bool `env:"MODEL_SYNC_ENABLED" envDefault:"true"`

	// File store
	FileStoreURL     string        `env:"FILE_STORE_URL" envDefault:"http://file-api:8285/v1/files"`
	FileStoreKey     string        `env:"FILE_STORE_KEY"`
	FileStoreTimeout time.Duration `env:"FILE_STORE_TIMEOUT" envDefault:"10s"`

	// Streaming
	StreamTimeout time.Duration `env:"STREAM_TIMEOUT" envDefault:"120s"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"chat-api"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"parley"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	Providers     *ProviderConfigs `env:"-"`
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	providers, err := LoadProviderConfigs(cfg.ProviderConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load provider configs: %w", err)
	}
	cfg.Providers = providers

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// GetGlobal returns the global config instance.
// Deprecated: Use dependency injection with Load() instead.
func GetGlobal() *Config {
	return globalConfig
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
