package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/promocast/promocast/internal/admin"
	auditdomain "github.com/promocast/promocast/internal/audit/domain"
	campaigndomain "github.com/promocast/promocast/internal/campaign/domain"
	"github.com/promocast/promocast/internal/config"
	orderdomain "github.com/promocast/promocast/internal/order/domain"
	"github.com/promocast/promocast/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	orderSvc    orderdomain.Service
	campaignSvc campaigndomain.Service
	adminSvc    *admin.Service
	auditSvc    auditdomain.Service
	limiter     *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	OrderSvc    orderdomain.Service
	CampaignSvc campaigndomain.Service
	AdminSvc    *admin.Service
	AuditSvc    auditdomain.Service
	Limiter     *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		orderSvc:    p.OrderSvc,
		campaignSvc: p.CampaignSvc,
		adminSvc:    p.AdminSvc,
		auditSvc:    p.AuditSvc,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Orders --------
	api.POST("/orders", ratelimit.Middleware(s.limiter, s.log, s.cfg.OrderRatePerMin, s.cfg.OrderBurst), s.CreateOrder)
	api.GET("/orders/:code", s.GetOrderByCode)
	api.POST("/orders/:code/cancel", s.CancelOrder)

	// -------- Campaigns --------
	api.GET("/orders/:code/campaign", s.GetCampaignByOrder)
	api.GET("/campaigns/:id/posts", s.ListCampaignPosts)
	api.POST("/posts/:id/status", s.UpdatePostStatus)
}

func (s *Server) registerAdminRoutes() {
	adm := s.engine.Group("/admin", LocalOnly())

	adm.POST("/orders/:id/force-match", s.ForceMatch)
	adm.POST("/transactions/:hash/reclassify", s.Reclassify)
	adm.POST("/orders/:id/reprovision", s.Reprovision)
	adm.GET("/audit-logs", s.ListAuditLogs)
}
