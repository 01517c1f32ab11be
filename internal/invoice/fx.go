package invoice

import (
	"github.com/plantmetrics/plant/internal/invoice/render"
	"github.com/plantmetrics/plant/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
)
