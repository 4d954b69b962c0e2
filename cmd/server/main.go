package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/convertly/internal"
	"github.com/DukeRupert/convertly/internal/billing"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/handler"
	"github.com/DukeRupert/convertly/internal/metrics"
	"github.com/DukeRupert/convertly/internal/middleware"
	"github.com/DukeRupert/convertly/internal/repository"
	"github.com/DukeRupert/convertly/internal/service"
	"github.com/DukeRupert/convertly/internal/session"
	"github.com/DukeRupert/convertly/internal/storage"
	"github.com/DukeRupert/convertly/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations
	if err := internal.RunMigrations(db, cfg.DatabaseDriver); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready", "driver", cfg.DatabaseDriver)

	// Initialize repository
	queries := repository.New(db, cfg.DatabaseDriver)

	// Initialize storage
	uploads, outputs, err := newStorages(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize payment gateway
	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}
	logger.Info("Payment gateway ready", "provider", gateway.Name())

	// Initialize services
	calendar := service.NewCalendar(cfg.Location(), time.Now)
	entitlementService := service.NewEntitlementService(queries, calendar, logger)
	quotaService := service.NewQuotaService(queries, cfg.FreeDailyLimit, calendar, logger)
	conversionService := service.NewConversionService(
		queries,
		uploads,
		outputs,
		service.NewImageConverter(domain.JPEGQuality),
		service.ConversionConfig{
			MaxUploadSize: cfg.MaxUploadSize,
			MaxConcurrent: int64(cfg.MaxConcurrentConversions),
		},
		logger,
	)
	paymentService := service.NewPaymentService(queries, gateway, service.PaymentConfig{
		Amount:   cfg.PremiumAmount,
		Currency: cfg.PremiumCurrency,
		Days:     cfg.PremiumDays,
	}, calendar, logger)
	retentionService := service.NewRetentionService(queries, uploads, outputs, service.RetentionConfig{
		FileRetention:      cfg.FileRetention,
		UsageRetentionDays: cfg.UsageRetentionDays,
	}, calendar, logger)

	// Initialize template renderer
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		Logger: logger,
		IsDev:  cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize sessions and middleware
	isSecure := !cfg.IsDevelopment()
	sessions, err := session.NewManager(cfg.SessionSecret, time.Duration(cfg.SessionDays)*24*time.Hour, isSecure)
	if err != nil {
		return fmt.Errorf("session initialization failed: %w", err)
	}
	paymentLimiter := middleware.NewPaymentRateLimiter(logger)
	defer paymentLimiter.Close()
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// Initialize handlers
	site := handler.NewSiteInfo(handler.SiteConfig{
		FreeDailyLimit:     cfg.FreeDailyLimit,
		PremiumAmount:      cfg.PremiumAmount,
		PremiumCurrency:    cfg.PremiumCurrency,
		PremiumDays:        cfg.PremiumDays,
		FileRetention:      cfg.FileRetention,
		UsageRetentionDays: cfg.UsageRetentionDays,
		MaxUploadSize:      cfg.MaxUploadSize,
	})
	convertHandler := handler.NewConvertHandler(conversionService, quotaService, entitlementService, renderer, site, isSecure, logger)
	premiumHandler := handler.NewPremiumHandler(handler.PremiumHandlerConfig{
		Payments:     paymentService,
		Entitlements: entitlementService,
		Gateway:      gateway,
		Sessions:     sessions,
		Limit:        paymentLimiter.Limit,
		Renderer:     renderer,
		Site:         site,
		BaseURL:      cfg.BaseURL,
		IsSecure:     isSecure,
		Logger:       logger,
	})
	pageHandler := handler.NewPageHandler(renderer, site, db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	staticFS := http.FileServer(http.Dir("web/static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))

	// Metrics
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	convertHandler.RegisterRoutes(mux)
	premiumHandler.RegisterRoutes(mux)
	pageHandler.RegisterRoutes(mux)

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	if len(trustedProxies) == 0 {
		logger.Info("No trusted proxies configured; clients are keyed by TCP peer address")
	}

	stack := middleware.Stack(
		middleware.NewClientIPMiddleware(trustedProxies).Handler,
		metrics.Middleware,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		sessions.Middleware,
	)

	// ==========================================================================
	// Start server and worker
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var retentionWorker *worker.Worker
	if cfg.RetentionEnabled {
		wcfg := worker.DefaultConfig()
		wcfg.Interval = cfg.RetentionInterval
		if wcfg.TaskTimeout > wcfg.Interval {
			wcfg.TaskTimeout = wcfg.Interval
		}
		retentionWorker, err = worker.New(wcfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		for _, task := range worker.RetentionTasks(retentionService) {
			retentionWorker.Register(task)
		}
		retentionWorker.Start(ctx)
	} else {
		logger.Info("Retention worker disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if retentionWorker != nil {
			retentionWorker.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}

func openDatabase(ctx context.Context, cfg *internal.Config) (*sql.DB, error) {
	driverName := "sqlite"
	if cfg.DatabaseDriver == internal.DriverPostgres {
		driverName = "pgx"
	}

	db, err := sql.Open(driverName, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if cfg.DatabaseDriver == internal.DriverSQLite {
		// One writer keeps the usage upsert free of SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func newStorages(cfg *internal.Config, logger *slog.Logger) (uploads, outputs storage.Storage, err error) {
	if cfg.StorageProvider == storage.ProviderR2 {
		r2 := func(prefix string) (storage.Storage, error) {
			return storage.NewR2Storage(storage.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretAccessKey,
				BucketName:      cfg.R2BucketName,
				Region:          cfg.R2Region,
				Prefix:          prefix,
			}, logger)
		}
		if uploads, err = r2("uploads"); err != nil {
			return nil, nil, err
		}
		if outputs, err = r2("output"); err != nil {
			return nil, nil, err
		}
		return uploads, outputs, nil
	}

	if uploads, err = storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.UploadDir}, logger); err != nil {
		return nil, nil, err
	}
	if outputs, err = storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.OutputDir}, logger); err != nil {
		return nil, nil, err
	}
	return uploads, outputs, nil
}

func newGateway(cfg *internal.Config) (billing.Gateway, error) {
	switch cfg.PaymentProvider {
	case internal.PaymentProviderRazorpay:
		return billing.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret), nil
	case internal.PaymentProviderStripe:
		return billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripePublishableKey, cfg.PremiumAmount, cfg.PremiumCurrency), nil
	case internal.PaymentProviderMock:
		return billing.NewMockGateway(cfg.MockPaymentSecret), nil
	}
	return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
