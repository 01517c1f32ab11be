package chapter

import (
	"github.com/plantmetrics/plant/internal/chapter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("chapter.service",
	fx.Provide(service.NewService),
)
