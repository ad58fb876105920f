package routes

import (
	"github.com/google/wire"

	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
	"parley-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"parley-server/internal/interfaces/httpserver/handlers/modelhandler"
	"parley-server/internal/interfaces/httpserver/handlers/usagehandler"
	v1 "parley-server/internal/interfaces/httpserver/routes/v1"
	"parley-server/internal/interfaces/httpserver/routes/v1/chat"
	"parley-server/internal/interfaces/httpserver/routes/v1/conversation"
	"parley-server/internal/interfaces/httpserver/routes/v1/model"
	"parley-server/internal/interfaces/httpserver/routes/v1/usage"
)

var RouteProvider = wire.NewSet(
	// Handlers
	chathandler.NewChatHandler,
	conversationhandler.NewConversationHandler,
	modelhandler.NewModelHandler,
	usagehandler.NewUsageHandler,

	// Routes
	v1.NewV1Route,
	chat.NewChatRoute,
	conversation.NewConversationRoute,
	model.NewModelRoute,
	usage.NewUsageRoute,
)
