package metric

import (
	"github.com/plantmetrics/plant/internal/metric/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metric.service",
	fx.Provide(service.NewService),
)
