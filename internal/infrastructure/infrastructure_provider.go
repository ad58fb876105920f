package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"parley-server/internal/config"
	"parley-server/internal/infrastructure/auth"
	"parley-server/internal/infrastructure/crontab"
	"parley-server/internal/infrastructure/database"
	"parley-server/internal/infrastructure/database/repository"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/infrastructure/filestore"
	"parley-server/internal/infrastructure/inference"
	"parley-server/internal/infrastructure/logger"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(cfg)
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled
	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}

	return db, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideTokenValidator provides a JWT validator. A nil validator means the
// gateway runs in development mode and trusts the X-User-Id header.
func ProvideTokenValidator(cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	if cfg.JWKSURL == "" {
		log.Warn().Msg("JWKS_URL not set, running without token validation")
		return nil, nil
	}
	return auth.NewValidator(
		context.Background(),
		cfg.JWKSURL,
		cfg.Issuer,
		cfg.Audience,
		cfg.RefreshJWKSInterval,
		log,
	)
}

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	DB        *gorm.DB
	Validator *auth.Validator
	Logger    zerolog.Logger
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(
	db *gorm.DB,
	validator *auth.Validator,
	logger zerolog.Logger,
) *Infrastructure {
	return &Infrastructure{
		DB:        db,
		Validator: validator,
		Logger:    logger,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,

	// Repositories
	repository.RepositoryProvider,

	// Vendor adapters
	inference.NewRegistry,

	// File store
	filestore.NewClient,

	// Logger
	logger.GetLogger,

	// Auth
	ProvideTokenValidator,

	// Crontab for model sync
	crontab.NewCrontab,

	// Infrastructure struct
	NewInfrastructure,
)
