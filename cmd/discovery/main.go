package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/token-radar/internal/application/services"
	"github.com/bimakw/token-radar/internal/application/workers"
	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/infrastructure/cache"
	"github.com/bimakw/token-radar/internal/infrastructure/discoveryapi"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/memory"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
	"github.com/bimakw/token-radar/internal/presentation/handlers"
	"github.com/bimakw/token-radar/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	logger.Info("Starting token-radar",
		zap.Int64("chain_id", cfg.Chain.ChainID),
		zap.String("rpc_url", cfg.Chain.RPCURL),
		zap.String("api_addr", cfg.API.Addr()),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// Connect to the chain node
	chainClient, err := ethereum.NewClient(ctx, cfg.Chain, logger)
	if err != nil {
		logger.Fatal("Failed to connect to chain node", zap.Error(err))
	}
	defer chainClient.Close()

	// Redis when configured, memory otherwise
	ttlCache := cache.New(cfg.Redis, logger)
	ttlCache.SetRecorder(m)
	defer ttlCache.Close()
	logger.Info("Cache backend selected", zap.String("backend", ttlCache.Backend(ctx)))

	registry := memory.NewTokenRegistry(logger)

	factories, err := cfg.Discovery.ParseFactories()
	if err != nil {
		logger.Fatal("Invalid factory configuration", zap.Error(err))
	}
	refs := workers.NewReferenceSet(cfg.Discovery.ReferenceAddresses())

	metadataReader := ethereum.NewMetadataReader(chainClient, logger)
	verifier := workers.NewVerifier(metadataReader, ttlCache, cfg.Discovery.MetadataTTL, cfg.Discovery.NegativeTTL, logger)
	submitter := workers.NewSubmitter(registry, verifier, m, cfg.Discovery.WorkerCount, logger)

	apiClient := discoveryapi.NewClient(cfg.Discovery, logger)
	textService := services.NewTextIngestService(submitter, ttlCache, cfg.Telegram.SeenTTL, logger)

	strategies := []workers.Strategy{
		workers.NewDeploymentScanner(chainClient, submitter, m, cfg.Discovery, logger),
		workers.NewMintScanner(chainClient, submitter, ttlCache, m, cfg.Discovery, logger),
		workers.NewDexFactoryScanner(chainClient, submitter, verifier, refs, factories, m, cfg.Discovery, logger),
		workers.NewDexPairPoller(apiClient, submitter, refs, m, cfg.Discovery, logger),
		workers.NewExternalAPIPoller(apiClient, submitter, refs, m, cfg.Discovery, logger),
	}

	telegramClient := telegram.NewClient(cfg.Telegram, cfg.Discovery.HTTPTimeout, logger)
	if telegramClient.Enabled() {
		strategies = append(strategies,
			workers.NewTelegramPoller(telegramClient, textService, cfg.Telegram.PollInterval, m, logger))
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, Telegram polling disabled")
	}

	discoveryService := services.NewDiscoveryService(strategies, m, logger)
	registry.SetObserver(discoveryService.OnMerge)

	// Create API services and handlers
	tokenService := services.NewTokenService(registry, ttlCache, cfg.API.CacheTTL, logger)
	tokenHandler := handlers.NewTokenHandler(tokenService, logger)
	statsHandler := handlers.NewStatsHandler(tokenService, logger)
	healthHandler := handlers.NewHealthHandler(chainClient, ttlCache, discoveryService)
	if cfg.Telegram.WebhookToken == "" {
		logger.Warn("TELEGRAM_WEBHOOK_SECRET not set, webhook accepts unauthenticated calls")
	}
	telegramHandler := handlers.NewTelegramHandler(textService, telegramClient.Channels(), cfg.Telegram.WebhookToken, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		tokenHandler.RegisterRoutes(r)
		r.Get("/stats", statsHandler.GetStats)
		r.With(middleware.WebhookRateLimiter(cfg.API.WebhookRPM)).
			Post("/webhooks/telegram", telegramHandler.Webhook)
	})

	server := &http.Server{
		Addr:         cfg.API.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start discovery workers
	discoveryService.Start(ctx)

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := discoveryService.Stop(shutdownCtx); err != nil {
		logger.Error("Discovery shutdown error", zap.Error(err))
	}

	logger.Info("token-radar stopped")
}

func setupLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
