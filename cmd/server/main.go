package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/erp/connector/internal/application/integration"
	"github.com/erp/connector/internal/domain/shared"
	"github.com/erp/connector/internal/infrastructure/cache"
	"github.com/erp/connector/internal/infrastructure/config"
	"github.com/erp/connector/internal/infrastructure/dispatch"
	"github.com/erp/connector/internal/infrastructure/ecommerce"
	"github.com/erp/connector/internal/infrastructure/logger"
	"github.com/erp/connector/internal/infrastructure/retry"
	"github.com/erp/connector/internal/infrastructure/scheduler"
	"github.com/erp/connector/internal/infrastructure/telemetry"
	"github.com/erp/connector/internal/interfaces/http/handler"
	"github.com/erp/connector/internal/interfaces/http/middleware"
	"github.com/erp/connector/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting order connector", zap.Any("config", cfg.Summary()))

	rootCtx := context.Background()

	// Tracing and metrics
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	metrics := telemetry.NewMetrics()

	// Platform clients
	timeoutSeconds := int(cfg.HTTP.RequestTimeout / time.Second)

	iqrConfig := ecommerce.NewIQRConfig(cfg.IQR.APIKey)
	iqrConfig.AuthURL = cfg.IQR.AuthURL
	iqrConfig.APIBaseURL = cfg.IQR.APIBaseURL
	iqrConfig.TimeoutSeconds = timeoutSeconds
	iqrConfig.PageSize = cfg.IQR.PageSize
	iqrConfig.MaxPage = cfg.IQR.MaxPage
	iqrConfig.MaxEmptyPages = cfg.IQR.MaxEmptyPages
	iqrConfig.SessionRefreshPages = cfg.IQR.SessionRefreshPages
	iqrConfig.SessionLifetime = cfg.IQR.SessionLifetime
	iqrConfig.SessionTTLFactor = cfg.IQR.SessionTTLFactor

	source, err := ecommerce.NewIQRClient(iqrConfig, metrics, log)
	if err != nil {
		log.Fatal("Failed to create IQR client", zap.Error(err))
	}

	shipStationConfig := ecommerce.NewShipStationConfig(cfg.ShipStation.APIKey, cfg.ShipStation.APISecret)
	shipStationConfig.APIBaseURL = cfg.ShipStation.APIBaseURL
	shipStationConfig.TimeoutSeconds = timeoutSeconds
	shipStationConfig.RequestsPerMinute = cfg.ShipStation.RequestsPerMinute
	shipStationConfig.DefaultRetryAfter = cfg.ShipStation.DefaultRetryAfter
	shipStationConfig.ShipmentPageSize = cfg.ShipStation.ShipmentPageSize

	destination, err := ecommerce.NewShipStationClient(shipStationConfig, metrics, log)
	if err != nil {
		log.Fatal("Failed to create ShipStation client", zap.Error(err))
	}

	// Delivery machinery
	retryer := retry.New(retry.Config{
		MaxRetries:     cfg.Sync.MaxRetries,
		InitialDelay:   cfg.Sync.RetryInitialDelay,
		MaxDelay:       cfg.Sync.RetryMaxDelay,
		JitterFraction: cfg.Sync.RetryJitter,
	}, log)

	dispatcher, err := dispatch.New(dispatch.Config{
		BatchSize:   cfg.Sync.BatchSize,
		Concurrency: cfg.Sync.Concurrency,
		BatchDelay:  cfg.Sync.BatchDelay,
	}, log)
	if err != nil {
		log.Fatal("Failed to create dispatcher", zap.Error(err))
	}

	// Webhook replay detection
	var idempotencyStore shared.IdempotencyStore
	if cfg.Tracking.IdempotencyEnabled {
		idempotencyStore, err = cache.NewIdempotencyStoreFactory(cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, cache.WithLogger(log)).CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	// Application services
	activity := appintegration.NewActivityTracker(appintegration.DefaultActivityCapacity)

	orderSync := appintegration.NewOrderSyncService(
		source,
		destination,
		appintegration.NewOrderTransformer(cfg.Sync.DefaultCountry, log),
		dispatcher,
		retryer,
		activity,
		metrics,
		appintegration.OrderSyncConfig{
			StoreName: cfg.ShipStation.StoreName,
			Channel:   cfg.Sync.Channel,
			Statuses:  cfg.Sync.Statuses,
			DaysBack:  cfg.Sync.DaysBack,
		},
		log,
	)

	trackingSync := appintegration.NewTrackingSyncService(
		source,
		destination,
		idempotencyStore,
		activity,
		metrics,
		appintegration.TrackingSyncConfig{
			WebhookSecret: cfg.ShipStation.WebhookSecret,
			Idempotency: shared.IdempotencyConfig{
				TTL:     cfg.Tracking.IdempotencyTTL,
				Enabled: cfg.Tracking.IdempotencyEnabled,
			},
		},
		log,
	)

	// Schedulers
	orderScheduler, err := scheduler.NewOrderSyncScheduler(
		cfg.Sync.Interval(),
		func() bool { return cfg.Sync.Enabled },
		func(ctx context.Context) error {
			_, err := orderSync.Run(ctx, appintegration.SyncOptions{})
			return err
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to create order sync scheduler", zap.Error(err))
	}

	shipmentScheduler, err := scheduler.NewShipmentPollScheduler(
		cfg.Tracking.PollInterval(),
		func(ctx context.Context, since time.Time) error {
			_, err := trackingSync.PollShipments(ctx, since)
			return err
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to create shipment poll scheduler", zap.Error(err))
	}

	// HTTP
	var triggerLimiter *middleware.RateLimiter
	if cfg.HTTP.TriggerRateLimit > 0 {
		triggerLimiter = middleware.NewRateLimiter(cfg.HTTP.TriggerRateLimit, time.Minute)
		defer triggerLimiter.Stop()
	}

	ginMode := gin.DebugMode
	if cfg.IsProduction() {
		ginMode = gin.ReleaseMode
	}

	engineConfig := router.EngineConfig{
		Mode:               ginMode,
		ServiceName:        cfg.Telemetry.ServiceName,
		TrustedProxies:     cfg.HTTP.TrustedProxies,
		MaxBodySize:        cfg.HTTP.MaxBodySize,
		WebhookMaxBodySize: cfg.HTTP.WebhookMaxBodySize,
		HandlerTimeout:     cfg.HTTP.RequestTimeout,
		TriggerLimiter:     triggerLimiter,
		TracingEnabled:     cfg.Telemetry.Enabled,
		TracerProvider:     tracerProvider.Provider(),
	}
	if cfg.Metrics.Enabled {
		engineConfig.MetricsHandler = metrics.Handler()
		engineConfig.MetricsPath = cfg.Metrics.Path
		engineConfig.HTTPObserver = metrics
	}

	engine, err := router.NewEngine(engineConfig, router.Handlers{
		Sync:    handler.NewSyncHandler(orderSync, trackingSync),
		Webhook: handler.NewWebhookHandler(trackingSync),
		Health: handler.NewHealthHandler(source, destination, handler.HealthConfig{
			Version:               cfg.App.Version,
			IQRConfigured:         cfg.IQR.APIKey != "",
			ShipStationConfigured: cfg.ShipStation.APIKey != "" && cfg.ShipStation.APISecret != "",
			ProbeTimeout:          cfg.HTTP.RequestTimeout,
		}, log),
		Activity: handler.NewActivityHandler(activity),
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	if err := orderScheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start order sync scheduler", zap.Error(err))
	}
	if err := shipmentScheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start shipment poll scheduler", zap.Error(err))
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := orderScheduler.Stop(ctx); err != nil {
		log.Error("Order sync scheduler did not stop in time", zap.Error(err))
	}
	if err := shipmentScheduler.Stop(ctx); err != nil {
		log.Error("Shipment poll scheduler did not stop in time", zap.Error(err))
	}

	source.EndSession(ctx)

	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
