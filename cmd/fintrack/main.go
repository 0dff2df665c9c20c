package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET not set, using the development secret", log.FieldComponent, log.ComponentAuth)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger).CreateBackend(initCtx, backendCfg)
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", backendCfg.Type.String())
		os.Exit(1)
	}

	structured := log.NewStructuredLogger(logger)
	clock := cfg.Clock()

	dashCache := cache.NewLRUCache[services.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(dashCache)
	cacheManager.StartCleanup(5 * time.Minute)

	dashboard := services.NewDashboardService(result.Store, dashCache, structured, clock)

	var publisher services.AlertPublisher
	if result.Alerts != nil {
		publisher = result.Alerts
	}
	ledger := services.NewLedgerService(result.Store, publisher, dashboard, structured, clock)
	accounts := services.NewAccountService(result.Store,
		auth.NewHasher(cfg.BcryptCost),
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:           accounts,
		Ledger:             ledger,
		Dashboard:          dashboard,
		Store:              result.Store,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", backendCfg.Type.String(),
		"alerts_enabled", publisher != nil,
		"timezone", cfg.Location().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
