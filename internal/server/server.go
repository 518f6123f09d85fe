package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tixsync/internal/config"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	"github.com/smallbiznis/tixsync/internal/observability"
	obsmiddleware "github.com/smallbiznis/tixsync/internal/observability/logger"
	"github.com/smallbiznis/tixsync/internal/ratelimit"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine       *gin.Engine
	cfg          config.Config
	reportSvc    reportdomain.Service
	mappingSvc   mappingdomain.Service
	showSvc      showdomain.Service
	submitLimits *ratelimit.SubmissionLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	ReportSvc    reportdomain.Service
	MappingSvc   mappingdomain.Service
	ShowSvc      showdomain.Service
	SubmitLimits *ratelimit.SubmissionLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		reportSvc:    p.ReportSvc,
		mappingSvc:   p.MappingSvc,
		showSvc:      p.ShowSvc,
		submitLimits: p.SubmitLimits,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	org := s.engine.Group("/v1/orgs/:org_id")

	// -------- Reports --------
	org.POST("/reports", s.SubmissionRateLimit(), s.SubmitReport)
	org.GET("/reports", s.ListReports)
	org.GET("/reports/:id", s.GetReport)

	// -------- Mappings --------
	org.GET("/mappings", s.ListMappings)
	org.POST("/mappings/:id/confirm", s.ConfirmMapping)
	org.DELETE("/mappings/:id", s.DeleteMapping)

	// -------- Canonical shows --------
	org.GET("/shows", s.ListShows)
	org.PUT("/shows/:id", s.UpsertShow)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
