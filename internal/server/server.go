package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim"
	claimdomain "github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/cloudmetrics"
	"github.com/agrishield/claims/internal/config"
	"github.com/agrishield/claims/internal/observability"
	obsmiddleware "github.com/agrishield/claims/internal/observability/logger"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
	obstracing "github.com/agrishield/claims/internal/observability/tracing"
	"github.com/agrishield/claims/internal/providers"
	"github.com/agrishield/claims/internal/providers/verifier"
	"github.com/agrishield/claims/internal/ratelimit"
	"github.com/agrishield/claims/internal/scheduler"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	providers.Module,
	claim.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	claimSvc      claimdomain.Service
	verifier      verifier.Verifier
	submitLimiter *ratelimit.SubmitLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	ClaimSvc      claimdomain.Service
	Verifier      verifier.Verifier
	SubmitLimiter *ratelimit.SubmitLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		claimSvc:      p.ClaimSvc,
		verifier:      p.Verifier,
		submitLimiter: p.SubmitLimiter,
	}

	svc.registerHealthRoutes()
	svc.registerClaimRoutes()

	return svc
}

func (s *Server) registerClaimRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/claims", s.SubmitClaim)
	api.GET("/claims", s.ListClaims)
	api.GET("/claims/:id", s.GetClaim)
	api.POST("/claims/:id/reprocess", s.ReprocessClaim)
	api.POST("/claims/:id/payout", s.InitiatePayout)
	api.GET("/claims/:id/payouts", s.ListPayouts)
}
