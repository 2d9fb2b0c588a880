package connection

import (
	"github.com/smallbiznis/clarity/internal/connection/platform"
	"github.com/smallbiznis/clarity/internal/connection/repository"
	"github.com/smallbiznis/clarity/internal/connection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("connection.service",
	fx.Provide(repository.Provide),
	fx.Provide(platform.NewDefaultRegistry),
	fx.Provide(service.New),
)
