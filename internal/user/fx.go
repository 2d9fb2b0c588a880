package user

import (
	"github.com/smallbiznis/clarity/internal/user/repository"
	"github.com/smallbiznis/clarity/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
