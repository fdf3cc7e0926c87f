package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/internal/cache"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	"github.com/smallbiznis/votechain/internal/costing"
	"github.com/smallbiznis/votechain/internal/lease"
	"github.com/smallbiznis/votechain/internal/ledger"
	"github.com/smallbiznis/votechain/internal/limits"
	"github.com/smallbiznis/votechain/internal/logger"
	"github.com/smallbiznis/votechain/internal/migration"
	"github.com/smallbiznis/votechain/internal/notify"
	obsmetrics "github.com/smallbiznis/votechain/internal/observability/metrics"
	"github.com/smallbiznis/votechain/internal/scheduler"
	"github.com/smallbiznis/votechain/internal/server"
	"github.com/smallbiznis/votechain/internal/settlement"
	"github.com/smallbiznis/votechain/internal/tenant"
	"github.com/smallbiznis/votechain/internal/voteintent"
	"github.com/smallbiznis/votechain/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lease.Module,
		cache.Module,
		obsmetrics.Module,
		migration.Module,

		// Domain
		tenant.Module,
		voteintent.Module,
		limits.Module,
		notify.Module,
		ledger.Module,
		fx.Provide(costing.NewEstimator),
		settlement.Module,

		// Surfaces
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
