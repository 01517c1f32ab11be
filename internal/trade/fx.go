package trade

import (
	"github.com/plantmetrics/plant/internal/trade/repository"
	"github.com/plantmetrics/plant/internal/trade/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trade.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
