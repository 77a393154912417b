package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kobitar/internal/amqp"
	"kobitar/internal/cli"
	"kobitar/internal/log"
	"kobitar/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting kobitar-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the activity worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	activity := worker.NewActivityWorker(repo, logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		stats := activity.Stats()
		logger.Info("Activity worker stats", "recorded", stats.Recorded, "duplicates", stats.Duplicates, "failed", stats.Failed)
	})

	go func() {
		if err := client.ConsumeActivity(ctx, activity.HandleActivity); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Activity consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	logger.Info("Consuming household activity", "queue", cfg.AMQPQueue, "db_path", cfg.SQLiteDBPath)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
