package server

import (
	"context"
	"fmt"
	"net/http"

	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/health"
	"affiliate-platform/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(
		NewRouter,
		NewHttpServer,
	),
	fx.Invoke(Run),
)

type RouterParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Error())

	router.GET("/healthz", p.Health.Liveness)
	router.GET("/readyz", p.Health.Readiness)

	return router
}

type Server struct {
	server *http.Server
}

type Params struct {
	fx.In
	Config *config.Config
	Router *gin.Engine
}

func NewHttpServer(p Params) *Server {
	cfg := p.Config
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Addr),
			Handler:      p.Router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("Starting HTTP server", zap.String("addr", srv.server.Addr))
			go func() {
				if err := srv.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					zap.L().Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			return srv.server.Shutdown(ctx)
		},
	})
}
