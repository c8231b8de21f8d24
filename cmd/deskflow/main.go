package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/deskflow/internal/activity"
	"github.com/smallbiznis/deskflow/internal/billingdashboard"
	"github.com/smallbiznis/deskflow/internal/catalog"
	"github.com/smallbiznis/deskflow/internal/clock"
	"github.com/smallbiznis/deskflow/internal/config"
	"github.com/smallbiznis/deskflow/internal/coupon"
	"github.com/smallbiznis/deskflow/internal/events"
	"github.com/smallbiznis/deskflow/internal/invoice"
	"github.com/smallbiznis/deskflow/internal/logger"
	"github.com/smallbiznis/deskflow/internal/migration"
	"github.com/smallbiznis/deskflow/internal/observability"
	"github.com/smallbiznis/deskflow/internal/payment"
	"github.com/smallbiznis/deskflow/internal/pricing"
	"github.com/smallbiznis/deskflow/internal/scheduler"
	"github.com/smallbiznis/deskflow/internal/seed"
	"github.com/smallbiznis/deskflow/internal/server"
	"github.com/smallbiznis/deskflow/internal/subscription"
	"github.com/smallbiznis/deskflow/internal/usage"
	"github.com/smallbiznis/deskflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		activity.Module,
		events.Module,
		catalog.Module,
		coupon.Module,
		pricing.Module,
		subscription.Module,
		usage.Module,
		invoice.Module,
		payment.Module,
		billingdashboard.Module,

		fx.Invoke(bootstrap),

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func bootstrap(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if err := migration.Run(context.Background(), conn, log); err != nil {
		return err
	}
	if cfg.Bootstrap.EnsureDefaultOrg {
		if err := seed.EnsureDefaultOrg(conn); err != nil {
			return err
		}
	}
	if cfg.Bootstrap.SeedDemoCatalog {
		return seed.EnsureDemoCatalog(conn)
	}
	return nil
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
