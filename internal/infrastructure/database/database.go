package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"

	"parley-server/internal/config"
	"parley-server/internal/infrastructure/logger"
)

// SchemaName is the postgres schema every gateway table lives in.
const SchemaName = "chat_api"

const tablePrefix = SchemaName + "."

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Options holds database connection configuration.
type Options struct {
	DatabaseURL string
	ReadDSN     string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// Connect creates a new database connection with the given configuration.
// When ReadDSN is set, reads are routed to the replica via dbresolver.
func Connect(opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(opts.DatabaseURL), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: false,
		},
		Logger:         gormlogger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		log := logger.GetLogger()
		log.Error().
			Str("error_code", "8f21ac47-0d35-4a1e-9c62-6be1f05c7d13").
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	if opts.ReadDSN != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas:          []gorm.Dialector{postgres.Open(opts.ReadDSN)},
			TraceResolverMode: true,
		}))
		if err != nil {
			return nil, err
		}
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdle)
	sqlDB.SetMaxOpenConns(opts.MaxOpen)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	log := logger.GetLogger()
	log.Info().Msg("Successfully connected to database")
	return db, nil
}

// NewDB creates the database connection from application configuration.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	return Connect(Options{
		DatabaseURL: cfg.DatabaseURL,
		ReadDSN:     cfg.DBPostgresqlReadDSN,
		MaxIdle:     10,
		MaxOpen:     25,
		MaxLifetime: 1 * time.Hour,
		LogLevel:    gormlogger.Silent,
	})
}
