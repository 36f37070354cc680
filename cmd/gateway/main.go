package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmelo/llm-gateway/internal/api"
	"github.com/dmelo/llm-gateway/internal/auth"
	"github.com/dmelo/llm-gateway/internal/budget"
	"github.com/dmelo/llm-gateway/internal/cache"
	"github.com/dmelo/llm-gateway/internal/config"
	"github.com/dmelo/llm-gateway/internal/dispatch"
	"github.com/dmelo/llm-gateway/internal/httputil"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/notifications"
	"github.com/dmelo/llm-gateway/internal/provider"
	"github.com/dmelo/llm-gateway/internal/provider/anthropic"
	"github.com/dmelo/llm-gateway/internal/provider/bedrock"
	"github.com/dmelo/llm-gateway/internal/provider/openai"
	"github.com/dmelo/llm-gateway/internal/ratelimit"
	"github.com/dmelo/llm-gateway/internal/repository"
	"github.com/dmelo/llm-gateway/internal/secrets"
	"github.com/dmelo/llm-gateway/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting LLM gateway", "addr", cfg.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, "llm-gateway", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	if cfg.SecretsName != "" && cfg.AWSRegion != "" {
		loadProviderSecrets(ctx, cfg)
	}

	var tenantRepo repository.TenantRepository
	var usageLedger ledger.Ledger

	if cfg.DatabaseURL != "" {
		db, err := repository.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		tenantRepo = repository.NewPostgresTenantRepository(db)
		usageLedger = ledger.NewPostgresLedger(db)
		slog.Info("using postgres storage")
	} else {
		tenantRepo = repository.NewInMemoryTenantRepository()
		usageLedger = ledger.NewInMemoryLedger()
		slog.Info("using in-memory storage")
	}

	if cfg.SQSUsageQueueURL != "" && cfg.AWSRegion != "" {
		usageLedger, err = ledger.NewSQSExporter(ctx, usageLedger, cfg.AWSRegion, cfg.SQSUsageQueueURL)
		if err != nil {
			slog.Error("failed to initialize usage export queue", "error", err)
			os.Exit(1)
		}
		slog.Info("usage export enabled", "queue", cfg.SQSUsageQueueURL)
	}

	var rateLimiter ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		rateLimiter, err = ratelimit.NewRedisRateLimiter(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("using redis rate limiter")
	} else {
		rateLimiter = ratelimit.NewInMemoryRateLimiter()
		slog.Info("using in-memory rate limiter")
	}

	responseCache := buildCache(cfg)
	registry := buildRegistry(cfg)

	if len(registry.Names()) == 0 {
		slog.Warn("no providers configured, every request will fail over to 503")
	}

	budgetMonitor := buildBudgetMonitor(ctx, cfg, usageLedger)

	dispatcher := dispatch.New(dispatch.Config{
		RateLimiter:    rateLimiter,
		Cache:          responseCache,
		CacheTTL:       cfg.CacheTTL,
		Registry:       registry,
		FallbackOrder:  cfg.FallbackOrder,
		AttemptTimeout: cfg.ProviderTimeout,
		Ledger:         usageLedger,
		Budget:         budgetMonitor,
	})

	handler := api.NewHandler(api.HandlerConfig{
		TenantRepo: tenantRepo,
		Dispatcher: dispatcher,
		Registry:   registry,
	})

	adminAuth := auth.NewAdminAuth(cfg.AdminAuthEnabled, cfg.AdminUsername, cfg.AdminPasswordHash)
	adminHandler := api.NewAdminHandler(tenantRepo, usageLedger, adminAuth)

	mux := http.NewServeMux()
	mux.Handle("/admin/", adminHandler)
	mux.Handle("/", handler)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}

func buildCache(cfg *config.Config) cache.Cache {
	if !cfg.CacheEnabled {
		slog.Info("response cache disabled")
		return cache.NewDisabled()
	}

	if cfg.RedisURL != "" {
		c, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			slog.Warn("failed to connect to redis for cache, using in-memory", "error", err)
			return cache.NewInMemoryCache()
		}
		slog.Info("using redis cache", "ttl", cfg.CacheTTL)
		return c
	}

	slog.Info("using in-memory cache", "ttl", cfg.CacheTTL)
	return cache.NewInMemoryCache()
}

// buildRegistry registers a factory for every provider that has a credential
// configured. Names without a factory resolve to absent, which the dispatch
// pipeline skips.
func buildRegistry(cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry()
	client := httputil.NewClient(httputil.DefaultConfig())

	if cfg.OpenAI.APIKey != "" {
		openaiCfg := cfg.OpenAI
		registry.Register("openai", func(ctx context.Context) (provider.Provider, error) {
			return openai.New(openaiCfg.APIKey, openaiCfg.BaseURL, openaiCfg.CostPer1KTokens, client), nil
		})
		slog.Info("registered provider", "provider", "openai")
	}

	if cfg.Anthropic.APIKey != "" {
		anthropicCfg := cfg.Anthropic
		registry.Register("anthropic", func(ctx context.Context) (provider.Provider, error) {
			return anthropic.New(anthropicCfg.APIKey, anthropicCfg.BaseURL, anthropicCfg.CostPer1KTokens, client), nil
		})
		slog.Info("registered provider", "provider", "anthropic")
	}

	if cfg.BedrockEnabled && cfg.AWSRegion != "" {
		region := cfg.AWSRegion
		rate := cfg.BedrockCostPer1KTokens
		registry.Register("bedrock", func(ctx context.Context) (provider.Provider, error) {
			return bedrock.New(ctx, region, rate)
		})
		slog.Info("registered provider", "provider", "bedrock", "region", region)
	}

	return registry
}

func buildBudgetMonitor(ctx context.Context, cfg *config.Config, usageLedger ledger.Ledger) *budget.Monitor {
	var notifier notifications.Notifier = notifications.NewLogNotifier()
	if cfg.SNSTopicARN != "" && cfg.AWSRegion != "" {
		n, err := notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Warn("failed to initialize SNS notifier, using log notifier", "error", err)
		} else {
			notifier = n
			slog.Info("budget alerts via SNS", "topic", cfg.SNSTopicARN)
		}
	}

	var dedup budget.AlertDeduplicator = budget.NewInMemoryDeduplicator()
	if cfg.RedisURL != "" {
		d, err := budget.NewRedisDeduplicator(cfg.RedisURL, time.Hour)
		if err != nil {
			slog.Warn("failed to initialize redis alert deduplicator, using in-memory", "error", err)
		} else {
			dedup = d
		}
	}

	return budget.NewMonitor(usageLedger, notifier, dedup, budget.DefaultThresholds())
}

// loadProviderSecrets overrides env-supplied provider keys with values from
// AWS Secrets Manager when a secret name is configured.
func loadProviderSecrets(ctx context.Context, cfg *config.Config) {
	store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Warn("failed to initialize secrets manager", "error", err)
		return
	}

	var creds secrets.ProviderCredentials
	if err := store.GetSecretJSON(ctx, cfg.SecretsName, &creds); err != nil {
		slog.Warn("failed to load provider credentials from secrets manager", "error", err)
		return
	}

	if creds.OpenAIAPIKey != "" {
		cfg.OpenAI.APIKey = creds.OpenAIAPIKey
	}
	if creds.AnthropicAPIKey != "" {
		cfg.Anthropic.APIKey = creds.AnthropicAPIKey
	}

	slog.Info("provider credentials loaded from secrets manager", "secret", cfg.SecretsName)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
