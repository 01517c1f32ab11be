package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/config"
	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	notificationdomain "github.com/plantmetrics/plant/internal/notification/domain"
	"github.com/plantmetrics/plant/internal/observability/metrics"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	TradeRepo       tradedomain.Repository
	InvoiceSvc      invoicedomain.Service
	NotificationSvc notificationdomain.Service
	AppCfg          config.Config
	Config          Config `optional:"true"`
}

// Worker fulfills the time-driven contracts: issuing invoices for trades
// whose payment never confirmed within the grace window, and delivering
// broadcasts whose schedule time has passed.
type Worker struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	tradeRepo       tradedomain.Repository
	invoiceSvc      invoicedomain.Service
	notificationSvc notificationdomain.Service
	cfg             Config
	metrics         *metrics.SweeperMetrics
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:              p.DB,
		log:             p.Log.Named("scheduler"),
		clock:           p.Clock,
		tradeRepo:       p.TradeRepo,
		invoiceSvc:      p.InvoiceSvc,
		notificationSvc: p.NotificationSvc,
		cfg:             p.Config.withDefaults(),
		metrics: metrics.Sweeper(metrics.Config{
			ServiceName: "plant",
			Environment: p.AppCfg.Environment,
		}),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := errors.Join(
		w.sweepStuckTrades(ctx),
		w.dispatchScheduledBroadcasts(ctx),
	)
	w.metrics.ObserveRunDuration(time.Since(start))
	if err != nil {
		w.metrics.IncRun("failed")
	} else {
		w.metrics.IncRun("success")
	}
	return err
}

// sweepStuckTrades issues invoices for trades that entered invoiced longer
// than the grace window ago and still have no invoice row.
func (w *Worker) sweepStuckTrades(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-w.cfg.InvoiceGraceWindow)
	stuck, err := w.tradeRepo.ListStuckInvoiced(ctx, w.db, tradedomain.StuckFilter{
		Before: cutoff,
		Limit:  w.cfg.BatchSize,
	})
	if err != nil {
		return err
	}

	for _, trade := range stuck {
		result, err := w.invoiceSvc.Generate(ctx, trade.ID)
		if err != nil {
			w.log.Warn("grace-window invoice generation failed",
				zap.String("trade_id", trade.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !result.Existed {
			w.metrics.AddStuckTradesSwept(1)
			w.log.Info("grace-window invoice issued",
				zap.String("trade_id", trade.ID.String()),
				zap.String("invoice_number", result.Invoice.InvoiceNumber),
			)
		}
	}
	return nil
}

func (w *Worker) dispatchScheduledBroadcasts(ctx context.Context) error {
	dispatched, err := w.notificationSvc.DispatchScheduled(ctx, w.clock.Now())
	if err != nil {
		return err
	}
	if dispatched > 0 {
		w.metrics.AddBroadcastsDispatched(dispatched)
		w.log.Info("scheduled broadcasts dispatched", zap.Int("count", dispatched))
	}
	return nil
}
