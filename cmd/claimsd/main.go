package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/agrishield/claims/internal/clock"
	"github.com/agrishield/claims/internal/migration"
	"github.com/agrishield/claims/internal/observability"
	"github.com/agrishield/claims/internal/server"
	"github.com/agrishield/claims/pkg/db"
)

func main() {
	fx.New(options()...).Run()
}

// options lists the whole application graph. config.Module is carried by
// server.Module; including it here as well would duplicate the provide.
func options() []fx.Option {
	return []fx.Option{
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
