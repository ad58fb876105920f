package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"parley-server/internal/config"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/domain/modelcatalog"
	"parley-server/internal/domain/provider"
	"parley-server/internal/domain/tokenusage"
	"parley-server/internal/domain/turn"
	"parley-server/internal/infrastructure/database/transaction"
	"parley-server/internal/infrastructure/filestore"
	"parley-server/internal/infrastructure/inference"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Provider registry
	provider.NewRegistry,

	// Conversation domain
	ProvideConversationService,

	// Usage accounting
	tokenusage.NewService,

	// Model catalog
	ProvideModelCatalogService,

	// Turn orchestration
	ProvideTurnService,
)

// ProvideConversationService binds the transaction database as the
// conversation transactor.
func ProvideConversationService(
	conversations conversation.Repository,
	messages conversation.MessageRepository,
	txdb *transaction.Database,
) *conversation.Service {
	return conversation.NewService(conversations, messages, txdb)
}

// ProvideModelCatalogService wires the catalog service to the provider
// registry and vendor adapters.
func ProvideModelCatalogService(
	repo modelcatalog.Repository,
	providers *provider.Registry,
	adapters *inference.Registry,
	log zerolog.Logger,
) *modelcatalog.Service {
	return modelcatalog.NewService(repo, providers, adapters, log)
}

// ProvideTurnService wires the turn orchestrator.
func ProvideTurnService(
	cfg *config.Config,
	providers *provider.Registry,
	adapters *inference.Registry,
	conversations *conversation.Service,
	usage *tokenusage.Service,
	files *filestore.Client,
	log zerolog.Logger,
) *turn.Service {
	return turn.NewService(providers, adapters, conversations, usage, files, cfg.StreamTimeout, log)
}
