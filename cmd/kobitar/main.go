package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"kobitar/internal/backend"
	"kobitar/internal/cli"
	"kobitar/internal/dashboard"
	apphttp "kobitar/internal/http"
	"kobitar/internal/log"
	"kobitar/internal/notify"
)

func main() {
	cfg, logger := cli.Bootstrap()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	svc := dashboard.NewService(result.Backend).
		WithNotifier(notify.Multi(notify.NewLogger(logger.Logger), notify.Contextual)).
		WithFormatter(cli.Formatter(logger, cfg)).
		WithMealPlan(cfg.MealPlan()).
		WithLogger(logger)

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		svc.WithPublisher(amqpClient)
		defer amqpClient.Close()
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithLogger(logger),
		apphttp.WithReadinessCheck("backend", result.Ping),
	)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting kobitar server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
