package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/interfaces/http/dto"
)

// Health states reported by the detailed health check
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"

	serviceUp   = "up"
	serviceDown = "down"
)

const defaultProbeTimeout = 10 * time.Second

// SessionProber can open and close a source ERP session
type SessionProber interface {
	Authenticate(ctx context.Context) error
	EndSession(ctx context.Context)
}

// StoreLister lists destination stores
type StoreLister interface {
	ListStores(ctx context.Context) ([]integration.Store, error)
}

// HealthConfig configures the HealthHandler
type HealthConfig struct {
	Version string
	// IQRConfigured and ShipStationConfigured report whether credentials were supplied
	IQRConfigured         bool
	ShipStationConfigured bool
	ProbeTimeout          time.Duration
}

// HealthHandler serves liveness, readiness and health probes
type HealthHandler struct {
	BaseHandler
	source      SessionProber
	destination StoreLister
	config      HealthConfig
	logger      *zap.Logger
	startTime   time.Time
	now         func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(source SessionProber, destination StoreLister, config HealthConfig, logger *zap.Logger) *HealthHandler {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		source:      source,
		destination: destination,
		config:      config,
		logger:      logger,
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// Health always reports healthy while the process serves requests
//
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: h.timestamp(),
	})
}

// DetailedHealth probes both platforms concurrently. One platform down is
// degraded (200), both down is unhealthy (503).
//
// GET /health/detailed
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	started := h.now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.ProbeTimeout)
	defer cancel()

	iqr, shipStation := serviceDown, serviceDown

	var g errgroup.Group
	g.Go(func() error {
		if err := h.source.Authenticate(ctx); err != nil {
			h.logger.Error("IQR health check failed", zap.Error(err))
			return nil
		}
		iqr = serviceUp
		h.source.EndSession(context.WithoutCancel(ctx))
		return nil
	})
	g.Go(func() error {
		if _, err := h.destination.ListStores(ctx); err != nil {
			h.logger.Error("ShipStation health check failed", zap.Error(err))
			return nil
		}
		shipStation = serviceUp
		return nil
	})
	_ = g.Wait()

	status := HealthStatusHealthy
	switch {
	case iqr == serviceDown && shipStation == serviceDown:
		status = HealthStatusUnhealthy
	case iqr == serviceDown || shipStation == serviceDown:
		status = HealthStatusDegraded
	}

	statusCode := http.StatusOK
	if status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.logger.Info("Health check completed",
		zap.String("status", status),
		zap.Duration("duration", h.now().Sub(started)),
	)

	c.JSON(statusCode, dto.DetailedHealthResponse{
		Status:    status,
		Timestamp: h.timestamp(),
		Uptime:    h.now().Sub(h.startTime).Seconds(),
		Version:   h.config.Version,
		Services: map[string]string{
			"iqr":         iqr,
			"shipstation": shipStation,
		},
	})
}

// Ready reports whether both platforms' credentials are configured
//
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.config.IQRConfigured || !h.config.ShipStationConfigured {
		c.JSON(http.StatusServiceUnavailable, dto.ReadyResponse{Ready: false, Reason: "Missing configuration"})
		return
	}
	c.JSON(http.StatusOK, dto.ReadyResponse{Ready: true})
}

// Live reports that the process is alive
//
// GET /live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, dto.LiveResponse{Alive: true})
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
