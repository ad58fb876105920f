package repository

import (
	"github.com/google/wire"

	"parley-server/internal/infrastructure/database/repository/conversationrepo"
	"parley-server/internal/infrastructure/database/repository/modelcatalogrepo"
	"parley-server/internal/infrastructure/database/repository/tokenusagerepo"
)

var RepositoryProvider = wire.NewSet(
	conversationrepo.NewConversationGormRepository,
	conversationrepo.NewMessageGormRepository,
	tokenusagerepo.NewTokenUsageGormRepository,
	modelcatalogrepo.NewModelCatalogGormRepository,
)
