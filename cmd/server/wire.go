//go:build wireinject

package main

import (
	"parley-server/internal/domain"
	"parley-server/internal/infrastructure"
	"parley-server/internal/interfaces"
	"parley-server/internal/interfaces/httpserver/routes"

	"github.com/google/wire"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
