package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/meterreadings/internal/account"
	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/smallbiznis/meterreadings/internal/config"
	"github.com/smallbiznis/meterreadings/internal/observability"
	obsmiddleware "github.com/smallbiznis/meterreadings/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meterreadings/internal/observability/metrics"
	obstracing "github.com/smallbiznis/meterreadings/internal/observability/tracing"
	"github.com/smallbiznis/meterreadings/internal/promexport"
	"github.com/smallbiznis/meterreadings/internal/ratelimit"
	"github.com/smallbiznis/meterreadings/internal/reading"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	promexport.Module,
	ratelimit.Module,
	account.Module,
	reading.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
	Prom        *promexport.Collector   `optional:"true"`
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.HTTPMetrics, promexport.Gatherer(p.Prom))
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	uploadCfg     *config.UploadConfigHolder
	readingSvc    readingdomain.Service
	accountSvc    accountdomain.Service
	obsMetrics    *obsmetrics.Metrics
	uploadLimiter *ratelimit.UploadLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	UploadCfg     *config.UploadConfigHolder `optional:"true"`
	ReadingSvc    readingdomain.Service
	AccountSvc    accountdomain.Service
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		uploadCfg:     p.UploadCfg,
		readingSvc:    p.ReadingSvc,
		accountSvc:    p.AccountSvc,
		obsMetrics:    p.ObsMetrics,
		uploadLimiter: p.UploadLimiter,
	}

	svc.registerUploadRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUploadRoutes() {
	s.engine.POST("/meter-reading-uploads", s.UploadRateLimit(), s.UploadMeterReadings)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/meter-reading-uploads/:id", s.GetMeterReadingUpload)
	api.GET("/accounts/:id", s.GetAccount)
	api.GET("/accounts/:id/meter-readings", s.ListAccountMeterReadings)
}
