package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plantmetrics/plant/internal/config"
	"github.com/plantmetrics/plant/internal/observability/logger"
	"github.com/plantmetrics/plant/internal/observability/metrics"
	"github.com/plantmetrics/plant/internal/observability/tracing"
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware())
	engine.Use(metrics.GinMiddleware(metrics.HTTP(metrics.Config{
		ServiceName: "plant",
		Environment: cfg.Environment,
	})))
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	return engine
}
