package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/audit"
	"github.com/plantmetrics/plant/internal/chapter"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/config"
	"github.com/plantmetrics/plant/internal/invoice"
	"github.com/plantmetrics/plant/internal/mail"
	"github.com/plantmetrics/plant/internal/metric"
	"github.com/plantmetrics/plant/internal/migration"
	"github.com/plantmetrics/plant/internal/notification"
	"github.com/plantmetrics/plant/internal/observability/logger"
	"github.com/plantmetrics/plant/internal/observability/tracing"
	"github.com/plantmetrics/plant/internal/payment"
	"github.com/plantmetrics/plant/internal/profile"
	"github.com/plantmetrics/plant/internal/report"
	"github.com/plantmetrics/plant/internal/scheduler"
	"github.com/plantmetrics/plant/internal/seed"
	"github.com/plantmetrics/plant/internal/server"
	"github.com/plantmetrics/plant/internal/trade"
	"github.com/plantmetrics/plant/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Invoke(func(log *zap.Logger) {
			log.Info("starting", zap.String("version", version))
		}),
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureDefaultAdmin(conn)
		}),
		mail.Module,
		audit.Module,
		profile.Module,
		chapter.Module,
		metric.Module,
		trade.Module,
		invoice.Module,
		payment.Module,
		notification.Module,
		report.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
