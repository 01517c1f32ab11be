package payment

import (
	"go.uber.org/fx"

	"github.com/plantmetrics/plant/internal/payment/adapters"
	"github.com/plantmetrics/plant/internal/payment/adapters/mpesa"
	"github.com/plantmetrics/plant/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(mpesa.NewFactory())
	}),
	fx.Provide(service.NewService),
)
