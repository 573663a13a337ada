package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jobfill/jobfill/internal/api"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/repository"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/internal/storage"
)

func main() {
	publish := flag.String("publish", "", "Upload this profile file as the MinIO seed object and exit")
	flag.Parse()

	godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.Env, cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting jobfill background service",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
		zap.String("store", cfg.Store.Backend),
	)

	if *publish != "" {
		if err := publishProfile(cfg.Storage, *publish, logger); err != nil {
			logger.Fatal("Failed to publish profile", zap.Error(err))
		}
		return
	}

	metrics := observability.NewMetrics(cfg.App.Name, nil)

	// Connect the key-value store
	store, closeStore, err := repository.Open(cfg, metrics, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Seed the profile
	source, err := storage.NewProfileSource(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to configure profile source", zap.Error(err))
	}

	svc := background.NewService(store, logger)
	installCtx, cancelInstall := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.Install(installCtx, source)
	cancelInstall()
	if err != nil {
		logger.Fatal("Failed to install", zap.Error(err))
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Metrics:        metrics,
		Logger:         logger,
		EnableCORS:     cfg.Security.CORSEnabled,
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		RateLimit:      rateLimit(cfg.RateLimits),
		RateBurst:      cfg.RateLimits.BurstSize,
		APIKey:         cfg.Security.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
	})

	// Create HTTP server
	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Background service listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// publishProfile reads a local profile file and uploads it to the bucket
func publishProfile(cfg config.StorageConfig, path string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile, err := storage.NewFileProfileSource(path).LoadProfile(ctx)
	if err != nil {
		return err
	}
	uri, err := storage.PublishProfile(ctx, cfg, profile)
	if err != nil {
		return err
	}
	logger.Info("Profile published", zap.String("uri", uri))
	return nil
}

func rateLimit(cfg config.RateLimitConfig) int {
	if !cfg.Enabled {
		return 0
	}
	return cfg.RequestsPerMin
}

// initLogger creates a configured zap logger
func initLogger(env config.Environment, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if env == config.EnvProduction {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := zcfg.Build()
	if err != nil {
		// Fall back to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
