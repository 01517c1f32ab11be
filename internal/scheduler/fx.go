package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/plantmetrics/plant/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			PollInterval:       cfg.Sweeper.PollInterval,
			BatchSize:          cfg.Sweeper.BatchSize,
			InvoiceGraceWindow: cfg.Sweeper.InvoiceGraceWindow,
		}
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
