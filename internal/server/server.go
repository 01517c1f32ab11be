package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/plantmetrics/plant/internal/audit/domain"
	chapterdomain "github.com/plantmetrics/plant/internal/chapter/domain"
	"github.com/plantmetrics/plant/internal/clock"
	"github.com/plantmetrics/plant/internal/config"
	invoicedomain "github.com/plantmetrics/plant/internal/invoice/domain"
	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	notificationdomain "github.com/plantmetrics/plant/internal/notification/domain"
	paymentdomain "github.com/plantmetrics/plant/internal/payment/domain"
	profiledomain "github.com/plantmetrics/plant/internal/profile/domain"
	reportdomain "github.com/plantmetrics/plant/internal/report/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
)

type Params struct {
	fx.In

	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	GenID           *snowflake.Node
	Clock           clock.Clock
	ProfileSvc      profiledomain.Service
	ChapterSvc      chapterdomain.Service
	MetricSvc       metricdomain.Service
	TradeSvc        tradedomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      paymentdomain.Service
	NotificationSvc notificationdomain.Service
	ReportSvc       reportdomain.Service
	AuditSvc        auditdomain.Service
}

type Server struct {
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	genID           *snowflake.Node
	clock           clock.Clock
	profileSvc      profiledomain.Service
	chapterSvc      chapterdomain.Service
	metricSvc       metricdomain.Service
	tradeSvc        tradedomain.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      paymentdomain.Service
	notificationSvc notificationdomain.Service
	reportSvc       reportdomain.Service
	auditSvc        auditdomain.Service
	loginLimiter    *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		db:              p.DB,
		genID:           p.GenID,
		clock:           p.Clock,
		profileSvc:      p.ProfileSvc,
		chapterSvc:      p.ChapterSvc,
		metricSvc:       p.MetricSvc,
		tradeSvc:        p.TradeSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		notificationSvc: p.NotificationSvc,
		reportSvc:       p.ReportSvc,
		auditSvc:        p.AuditSvc,
		loginLimiter:    newRateLimiter(10, time.Minute),
	}
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.POST("/auth/login", s.Login)
	// Provider callbacks authenticate by correlation token, not session.
	v1.POST("/payments/callback", s.PaymentCallback)

	authed := v1.Group("")
	authed.Use(s.SessionRequired())
	{
		authed.POST("/auth/logout", s.Logout)
		authed.GET("/me", s.GetOwnProfile)
		authed.PATCH("/me", s.UpdateOwnProfile)
		authed.GET("/dashboard", s.Dashboard)

		authed.POST("/metrics", s.CreateMetricEntry)
		authed.GET("/metrics", s.ListMetricEntries)
		authed.GET("/metrics/summary", s.MetricSummary)

		authed.POST("/trades", s.DeclareTrade)
		authed.GET("/trades", s.ListTrades)
		authed.GET("/trades/:id", s.GetTrade)
		authed.POST("/trades/:id/cancel", s.CancelTrade)
		authed.POST("/trades/:id/pay", s.InitiatePayment)
		authed.GET("/trades/:id/invoice", s.GetInvoice)

		authed.GET("/chapters", s.ListChapters)
		authed.GET("/chapters/:id", s.GetChapter)
		authed.GET("/chapters/:id/leaderboard", s.ChapterLeaderboard)

		leaders := authed.Group("")
		leaders.Use(s.RequireRole(profiledomain.RoleChapterLeader, profiledomain.RoleAdministrator))
		{
			leaders.GET("/chapters/:id/roster", s.ChapterRoster)
		}

		admin := authed.Group("")
		admin.Use(s.RequireRole(profiledomain.RoleAdministrator))
		{
			admin.POST("/profiles", s.CreateProfile)
			admin.GET("/profiles", s.ListProfiles)
			admin.GET("/profiles/:id", s.GetProfile)
			admin.PATCH("/profiles/:id", s.UpdateProfile)
			admin.POST("/profiles/:id/activate", s.ActivateProfile)
			admin.POST("/profiles/:id/deactivate", s.DeactivateProfile)
			admin.DELETE("/profiles/:id", s.DeleteProfile)

			admin.POST("/chapters", s.CreateChapter)
			admin.PATCH("/chapters/:id", s.UpdateChapter)
			admin.DELETE("/chapters/:id", s.DeleteChapter)

			admin.POST("/trades/:id/invoice", s.GenerateInvoice)
			admin.POST("/trades/:id/mark-paid", s.MarkTradePaid)
			admin.POST("/trades/:id/invoice/resend", s.ResendInvoice)

			admin.POST("/notifications", s.SendNotification)
			admin.GET("/notifications", s.ListNotifications)

			admin.POST("/reports", s.GenerateReport)
			admin.GET("/reports", s.ListReports)

			admin.GET("/audit-logs", s.ListAuditLogs)
		}
	}

	if !s.cfg.IsProduction() {
		engine.POST("/internal/test/cleanup", s.TestCleanup)
	}
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, server *Server, cfg config.Config, log *zap.Logger) {
	server.RegisterRoutes(engine)

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
