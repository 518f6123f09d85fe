package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tixsync/internal/aimatch"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/events"
	"github.com/smallbiznis/tixsync/internal/mapping"
	"github.com/smallbiznis/tixsync/internal/matching"
	"github.com/smallbiznis/tixsync/internal/migration"
	"github.com/smallbiznis/tixsync/internal/observability"
	"github.com/smallbiznis/tixsync/internal/ratelimit"
	"github.com/smallbiznis/tixsync/internal/report"
	"github.com/smallbiznis/tixsync/internal/scheduler"
	"github.com/smallbiznis/tixsync/internal/server"
	"github.com/smallbiznis/tixsync/internal/showdirectory"
	"github.com/smallbiznis/tixsync/internal/webhook"
	"github.com/smallbiznis/tixsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		events.Module,

		// Resolution pipeline
		showdirectory.Module,
		mapping.Module,
		aimatch.Module,
		matching.Module,
		webhook.Module,
		report.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
