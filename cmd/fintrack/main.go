package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/config"
	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/handler"
	"github.com/fintrack/fintrack-api-go/internal/infra/cache"
	"github.com/fintrack/fintrack-api-go/internal/infra/memstore"
	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/infra/resilience"
	"github.com/fintrack/fintrack-api-go/internal/infra/supabase"
	"github.com/fintrack/fintrack-api-go/internal/port"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fintrack-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	snapshotCache := cache.New[[]domain.Transaction](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Store & session provider ---
	var store port.LedgerStore
	var sessions port.SessionProvider

	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		supabaseClient := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			cfg.PollInterval,
			logger,
		)
		store = supabaseClient
		sessions = supabaseClient
	} else {
		logger.Warn("Supabase not configured, using in-memory backend; data will not survive a restart")
		store = memstore.NewStore()
		sessions = memstore.NewSessions(cfg.JWTSecret, cfg.JWTAccessTTL)
	}

	// --- Services ---
	ledgerSvc := service.NewLedgerService(store, snapshotCache, bulkhead, metrics, logger)
	sessionSvc := service.NewSessionService(sessions, cfg.JWTSecret, logger)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, sessionSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /v1/ledger/stream holds connections open.
		IdleTimeout: 60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
