package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/clarity/internal/auth"
	"github.com/smallbiznis/clarity/internal/config"
	"github.com/smallbiznis/clarity/internal/connection"
	connectiondomain "github.com/smallbiznis/clarity/internal/connection/domain"
	"github.com/smallbiznis/clarity/internal/eventlog"
	eventlogdomain "github.com/smallbiznis/clarity/internal/eventlog/domain"
	"github.com/smallbiznis/clarity/internal/events"
	"github.com/smallbiznis/clarity/internal/observability"
	obsmiddleware "github.com/smallbiznis/clarity/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/clarity/internal/observability/metrics"
	obstracing "github.com/smallbiznis/clarity/internal/observability/tracing"
	"github.com/smallbiznis/clarity/internal/ratelimit"
	"github.com/smallbiznis/clarity/internal/user"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
	"github.com/smallbiznis/clarity/internal/website"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	events.Module,
	ratelimit.Module,
	user.Module,
	website.Module,
	connection.Module,
	eventlog.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
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

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	verifier      *auth.Verifier
	userSvc       userdomain.Service
	websiteSvc    websitedomain.Service
	connectionSvc connectiondomain.Service
	eventSvc      eventlogdomain.Service
	eventLimiter  ratelimit.WebsiteLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Verifier      *auth.Verifier
	UserSvc       userdomain.Service
	WebsiteSvc    websitedomain.Service
	ConnectionSvc connectiondomain.Service
	EventSvc      eventlogdomain.Service
	EventLimiter  ratelimit.WebsiteLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

// NewServer binds the services to the engine and registers every route.
func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		verifier:      p.Verifier,
		userSvc:       p.UserSvc,
		websiteSvc:    p.WebsiteSvc,
		connectionSvc: p.ConnectionSvc,
		eventSvc:      p.EventSvc,
		eventLimiter:  p.EventLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	s.RegisterRPCRoutes()
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.SessionRequired())

	api.GET("/me", s.GetMe)
	api.POST("/me", s.SyncMe)
	api.POST("/me/onboarded", s.MarkOnboarded)
	api.DELETE("/me", s.DeleteMe)

	api.POST("/websites", s.CreateWebsite)
	api.GET("/websites", s.ListWebsites)
	api.GET("/websites/:id", s.GetWebsite)
	api.DELETE("/websites/:id", s.DeleteWebsite)

	api.POST("/websites/:id/connections", s.CreateConnection)
	api.GET("/websites/:id/connections", s.ListConnections)
	api.GET("/connections/:id", s.GetConnection)
	api.POST("/connections/:id/activate", s.ActivateConnection)
	api.POST("/connections/:id/deactivate", s.DeactivateConnection)
	api.DELETE("/connections/:id", s.DeleteConnection)

	api.POST("/websites/:id/events", s.WebsiteRequired(), s.EventIngestRateLimit(), s.IngestEvent)
	api.GET("/websites/:id/events", s.ListEvents)
	api.GET("/events/:id", s.GetEvent)
}
