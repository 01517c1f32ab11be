package audit

import (
	"github.com/plantmetrics/plant/internal/audit/repository"
	"github.com/plantmetrics/plant/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
