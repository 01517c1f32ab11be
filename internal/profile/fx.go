package profile

import (
	"github.com/plantmetrics/plant/internal/profile/repository"
	"github.com/plantmetrics/plant/internal/profile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
