// Package server exposes the HTTP surface: webhook ingestion, license usage
// reads, the admin setup-token endpoint, and operational probes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	billingdomain "github.com/checklanehq/checklane/internal/billing/domain"
	billingservice "github.com/checklanehq/checklane/internal/billing/service"
	"github.com/checklanehq/checklane/internal/bootstrap"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/license"
	"github.com/checklanehq/checklane/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	log         *zap.Logger
	db          *gorm.DB
	gate        bootstrap.SchemaGate
	webhookSvc  billingdomain.Service
	licenseSvc  *license.Service
	setupTokens *billingservice.SetupTokenService
	limiter     *ratelimit.Limiter
	engine      *gin.Engine
}

type Params struct {
	fx.In

	Logger      *zap.Logger
	DB          *gorm.DB
	Gate        bootstrap.SchemaGate
	WebhookSvc  billingdomain.Service
	LicenseSvc  *license.Service
	SetupTokens *billingservice.SetupTokenService
	Limiter     *ratelimit.Limiter
	Engine      *gin.Engine
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(RequestLogger(log.Named("http")))
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		log:         p.Logger.Named("server"),
		db:          p.DB,
		gate:        p.Gate,
		webhookSvc:  p.WebhookSvc,
		licenseSvc:  p.LicenseSvc,
		setupTokens: p.SetupTokens,
		limiter:     p.Limiter,
		engine:      p.Engine,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.GetLiveness)
	s.engine.GET("/readyz", s.GetReadiness)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/:provider", s.PostWebhook)

	api := s.engine.Group("/api")
	api.GET("/tenants/:id/license", s.GetLicenseUsage)

	admin := s.engine.Group("/admin", s.limiter.Middleware())
	admin.POST("/setup-tokens/:id/resend", s.ResendSetupToken)
}

// RunHTTP binds the engine to the configured address under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTP.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
