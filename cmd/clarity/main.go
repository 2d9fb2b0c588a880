package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/config"
	"github.com/smallbiznis/clarity/internal/migration"
	"github.com/smallbiznis/clarity/internal/observability"
	"github.com/smallbiznis/clarity/internal/scheduler"
	"github.com/smallbiznis/clarity/internal/server"
	"github.com/smallbiznis/clarity/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
