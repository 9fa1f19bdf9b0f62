package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/promocast/promocast/internal/admin"
	"github.com/promocast/promocast/internal/audit"
	"github.com/promocast/promocast/internal/campaign"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/explorer"
	"github.com/promocast/promocast/internal/logger"
	"github.com/promocast/promocast/internal/migration"
	"github.com/promocast/promocast/internal/notify"
	obsmetrics "github.com/promocast/promocast/internal/observability/metrics"
	"github.com/promocast/promocast/internal/order"
	"github.com/promocast/promocast/internal/poller"
	"github.com/promocast/promocast/internal/ratelimit"
	"github.com/promocast/promocast/internal/reconcile"
	"github.com/promocast/promocast/internal/scheduler"
	"github.com/promocast/promocast/internal/server"
	"github.com/promocast/promocast/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		order.Module,
		explorer.Module,
		notify.Module,
		campaign.Module,
		reconcile.Module,
		audit.Module,
		admin.Module,
		ratelimit.Module,
		poller.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		panic(err)
	}
	return node
}
