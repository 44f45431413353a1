package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/airtable"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/cache"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/scheduler"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/telemetry"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/handler"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/middleware"
)

// Version is set at build time
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting kiosk backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).Register(db.DB); err != nil {
		return err
	}

	productRepo := persistence.NewGormProductRepository(db.DB)

	runLock, err := cache.NewRunLockFactory(cfg.Sync, cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		return err
	}

	// External clients are optional; their routes answer with a configuration
	// error when the credentials are missing.
	airtableClient, err := newAirtableClient(cfg.Airtable)
	if err != nil {
		return err
	}
	storefrontClient, err := newStorefrontClient(cfg.Shopify)
	if err != nil {
		return err
	}

	syncMetrics, err := telemetry.NewCatalogSyncMetrics(mp.Meter("kiosk/catalog"))
	if err != nil {
		return err
	}

	var (
		syncRunner    handler.SyncRunner
		syncScheduler *scheduler.CatalogSyncScheduler
	)
	if airtableClient != nil {
		syncService := catalogapp.NewSyncService(
			airtable.NewProductSource(airtableClient),
			productRepo,
			runLock,
			log,
			catalogapp.WithSyncRecorder(syncMetrics),
		)
		syncRunner = syncService

		syncScheduler, err = newSyncScheduler(cfg.Sync, syncService, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn("Airtable credentials missing, catalog sync disabled")
	}

	webhookService := catalogapp.NewWebhookService(productRepo, ecommerce.ParseProductWebhook, log)
	queryService := catalogapp.NewQueryService(productRepo)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return err
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(mp.Meter("kiosk/http"))
	if err != nil {
		return err
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(httpMetrics)
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitBurst)
		defer limiter.Stop()
		engine.Use(middleware.RateLimit(limiter))
	}

	registerRoutes(engine, routeHandlers{
		health:   handler.NewHealthHandler(db, Version),
		airtable: handler.NewAirtableProxyHandler(airtableClient),
		shopify:  handler.NewShopifyProxyHandler(storefrontClient),
		cart:     handler.NewCartProxyHandler(storefrontClient),
		catalog:  handler.NewCatalogHandler(syncRunner, queryService),
		webhook: handler.NewWebhookHandler(webhookService, handler.WebhookConfig{
			Secret: cfg.Shopify.WebhookSecret,
			Verify: cfg.Shopify.VerifyWebhook,
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if syncScheduler != nil {
		g.Go(func() error {
			if err := syncScheduler.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return syncScheduler.Stop(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newAirtableClient(cfg config.AirtableConfig) (*airtable.Client, error) {
	atCfg := airtable.ConfigFromSettings(cfg)
	if !atCfg.Enabled() {
		return nil, nil
	}
	return airtable.NewClient(atCfg)
}

func newStorefrontClient(cfg config.ShopifyConfig) (*ecommerce.StorefrontClient, error) {
	if cfg.StorefrontToken == "" {
		return nil, nil
	}
	return ecommerce.NewStorefrontClient(ecommerce.ShopifyConfigFromSettings(cfg))
}

// corsConfig applies the configured CORS lists over the API defaults
func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}

// newSyncScheduler returns nil when neither an interval nor a startup run is
// configured.
func newSyncScheduler(cfg config.SyncConfig, syncer scheduler.CatalogSyncer, log *zap.Logger) (*scheduler.CatalogSyncScheduler, error) {
	if cfg.Interval <= 0 && !cfg.RunOnStart {
		return nil, nil
	}
	s, err := scheduler.NewCatalogSyncScheduler(scheduler.CatalogSyncSchedulerConfig{
		Interval:   cfg.Interval,
		RunOnStart: cfg.RunOnStart,
		JobTimeout: cfg.Timeout,
		MaxHistory: 50,
	}, syncer, log)
	if err != nil {
		return nil, fmt.Errorf("catalog sync scheduler: %w", err)
	}
	return s, nil
}
