package eventlog

import (
	"github.com/smallbiznis/clarity/internal/eventlog/repository"
	"github.com/smallbiznis/clarity/internal/eventlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eventlog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
