package main

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/db"
	"affiliate-platform/pkg/gen"
	"affiliate-platform/pkg/health"
	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/logger"
	"affiliate-platform/pkg/server"
	"affiliate-platform/services/sagalog"
	"affiliate-platform/services/tracking"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		kafka.Module,
		health.Module,
		fx.Provide(
			provideTracerProvider,
		),
		server.Module,
		sagalog.Module,
		tracking.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}
