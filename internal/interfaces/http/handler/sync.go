package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/erp/connector/internal/application/integration"
	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/infrastructure/logger"
	"github.com/erp/connector/internal/interfaces/http/middleware"
)

// OrderSyncer runs order syncs on demand
type OrderSyncer interface {
	Run(ctx context.Context, opts appintegration.SyncOptions) (*integration.SyncResult, error)
}

// ShipmentPoller writes back shipments created since a point in time
type ShipmentPoller interface {
	PollShipments(ctx context.Context, since time.Time) (*appintegration.ShipmentPollResult, error)
}

// SyncHandler handles manual sync triggers
type SyncHandler struct {
	BaseHandler
	orders    OrderSyncer
	shipments ShipmentPoller
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(orders OrderSyncer, shipments ShipmentPoller) *SyncHandler {
	return &SyncHandler{orders: orders, shipments: shipments}
}

// SyncOrders runs one order sync with optional date and status filters.
// An empty body runs an unfiltered sync.
//
// POST /api/sync/orders
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	var req appintegration.SyncOrdersRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	opts, err := req.ToSyncOptions()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	log := logger.FromContext(c.Request.Context())
	log.Info("Manual order sync triggered",
		zap.String("from_date", req.FromDate),
		zap.String("to_date", req.ToDate),
		zap.String("order_status", req.OrderStatus),
	)

	// a dropped client must not abort a run halfway through delivery
	result, err := h.orders.Run(context.WithoutCancel(c.Request.Context()), opts)
	if err != nil {
		if appintegration.IsAlreadyRunning(err) {
			h.Conflict(c, "Order sync already in progress")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, appintegration.ToSyncResultResponse(result))
}

// SyncShipments polls the destination for shipments and writes their
// tracking back to the source.
//
// POST /api/sync/shipments
func (h *SyncHandler) SyncShipments(c *gin.Context) {
	var req appintegration.SyncShipmentsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	since, err := req.SinceTime()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	logger.FromContext(c.Request.Context()).Info("Manual shipment poll triggered", zap.Time("since", since))

	result, err := h.shipments.PollShipments(context.WithoutCancel(c.Request.Context()), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// bindOptionalJSON binds a JSON body, treating an empty body as the zero value.
// It writes the error response and returns false when binding fails.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	middleware.HandleValidationError(c, err)
	return false
}
