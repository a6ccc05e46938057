package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/connector/internal/infrastructure/logger"
	"github.com/erp/connector/internal/interfaces/http/dto"
	"github.com/erp/connector/internal/interfaces/http/handler"
	"github.com/erp/connector/internal/interfaces/http/middleware"
)

// Probe and scrape paths are logged at debug level and never traced
const (
	PathHealth         = "/health"
	PathHealthDetailed = "/health/detailed"
	PathReady          = "/ready"
	PathLive           = "/live"
	DefaultMetricsPath = "/metrics"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Sync     *handler.SyncHandler
	Webhook  *handler.WebhookHandler
	Health   *handler.HealthHandler
	Activity *handler.ActivityHandler
}

// EngineConfig configures the gin engine
type EngineConfig struct {
	// Mode is the gin mode (debug, release, test)
	Mode           string
	ServiceName    string
	TrustedProxies []string

	MaxBodySize        int64
	WebhookMaxBodySize int64
	// HandlerTimeout bounds webhook and probe handlers; sync triggers are unbounded
	HandlerTimeout time.Duration

	// TriggerLimiter rate limits manual sync triggers when set
	TriggerLimiter *middleware.RateLimiter

	TracingEnabled bool
	TracerProvider trace.TracerProvider

	// MetricsHandler is served at MetricsPath when set
	MetricsHandler http.Handler
	MetricsPath    string
	// HTTPObserver records every served request when set
	HTTPObserver middleware.HTTPObserver
}

// NewEngine builds the gin engine with the middleware chain and every route
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultMetricsPath
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	quiet := []string{PathHealth, PathReady, PathLive, cfg.MetricsPath}
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.TracingEnabled,
			TracerProvider: cfg.TracerProvider,
			SkipPaths:      quiet,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(cfg.HTTPObserver),
		logger.GinMiddleware(log, quiet...),
		middleware.Secure(),
		// promhttp negotiates its own compression
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.MetricsPath})),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c),
		))
	})

	r := NewRouter(engine)
	r.Register(probeRoutes(cfg, h.Health))
	r.Register(apiRoutes(cfg, h))
	r.Register(webhookRoutes(cfg, h.Webhook))
	r.Setup()

	if cfg.MetricsHandler != nil {
		engine.GET(cfg.MetricsPath, gin.WrapH(cfg.MetricsHandler))
	}

	return engine, nil
}

func probeRoutes(cfg EngineConfig, h *handler.HealthHandler) *DomainGroup {
	return NewDomainGroup("probes", "").
		Use(middleware.Timeout(cfg.HandlerTimeout)).
		GET(PathHealth, h.Health).
		GET(PathHealthDetailed, h.DetailedHealth).
		GET(PathReady, h.Ready).
		GET(PathLive, h.Live)
}

func apiRoutes(cfg EngineConfig, h Handlers) *DomainGroup {
	api := NewDomainGroup("api", "/api").
		Use(middleware.BodyLimit(cfg.MaxBodySize)).
		GET("/activity", h.Activity.GetActivity)

	sync := api.Group("sync", "/sync")
	if cfg.TriggerLimiter != nil {
		sync.Use(middleware.RateLimit(cfg.TriggerLimiter))
	}
	sync.POST("/orders", h.Sync.SyncOrders).
		POST("/shipments", h.Sync.SyncShipments)

	return api
}

func webhookRoutes(cfg EngineConfig, h *handler.WebhookHandler) *DomainGroup {
	return NewDomainGroup("webhooks", "/webhooks").
		Use(
			middleware.BodyLimit(cfg.WebhookMaxBodySize),
			middleware.Timeout(cfg.HandlerTimeout),
		).
		POST("/shipstation", h.ShipStation)
}
