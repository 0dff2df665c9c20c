package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting fintrack alert-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	backendCfg.RequireAMQP = true
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend selected, recorded alerts will not be visible to the API process")
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger).CreateBackend(initCtx, backendCfg)
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}

	alertWorker := worker.NewAlertWorker(result.Store, log.NewStructuredLogger(logger))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	logger.Info("Consuming budget alerts", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := result.Alerts.ConsumeBudgetAlerts(ctx, alertWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
