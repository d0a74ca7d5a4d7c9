package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/config"
	"github.com/boddenberg/lavanderia-crm-go/internal/handler"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/cache"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/client"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/memory"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/mysql"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/observability"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/resilience"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/supabase"
	"github.com/boddenberg/lavanderia-crm-go/internal/port"
	"github.com/boddenberg/lavanderia-crm-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("pos_sync", cfg.POSAPIURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("visit_window", cfg.VisitWindow),
		zap.Duration("enrichment_window", cfg.EnrichmentWindow),
		zap.Strings("parity_stores", cfg.ParityStores),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "lavanderia-crm")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	reportCache := cache.New[any](cfg.CacheTTL)
	defer reportCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Stores ---
	var (
		sales    port.SaleStore
		orders   port.OrderStore
		registry port.CustomerRegistry
	)
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		sales, orders, registry = sb, sb, sb
	case config.BackendMySQL:
		logger.Info("using MySQL as data backend")
		db, err := mysql.Open(cfg.MySQLDSN, logger)
		if err != nil {
			logger.Fatal("failed to open mysql", zap.Error(err))
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.EnsureSchema(ctx)
		cancel()
		if err != nil {
			logger.Fatal("failed to prepare mysql schema", zap.Error(err))
		}
		sales, orders, registry = db, db, db
	default:
		logger.Warn("using in-memory data backend, records are lost on restart")
		mem := memory.New()
		sales, orders, registry = mem, mem, mem
	}

	// --- POS client ---
	var pos port.POSFetcher
	if cfg.POSAPIURL != "" {
		pos = client.NewPOSClient(httpClient, cfg.POSAPIURL, cfg.POSAPIToken, resilience.NewCircuitBreaker("pos"), resilienceCfg)
		logger.Info("pos sync enabled", zap.String("pos_api_url", cfg.POSAPIURL))
	} else {
		logger.Warn("pos sync: POS_API_URL not set, /v1/sync unavailable")
	}

	// --- Services ---
	crmSvc := service.NewCRMService(
		sales,
		orders,
		registry,
		pos,
		reportCache,
		cfg.EngineOptions(),
		cfg.MaxConcurrency,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(crmSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
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
