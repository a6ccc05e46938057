package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/domain/shared"
	"github.com/erp/connector/internal/infrastructure/telemetry"
)

// Webhook outcome labels reported to the SyncObserver
const (
	WebhookResultUpdated   = "updated"
	WebhookResultIgnored   = "ignored"
	WebhookResultNotOurs   = "not_ours"
	WebhookResultDuplicate = "duplicate"
	WebhookResultFailed    = "failed"
)

const defaultPollWindow = 24 * time.Hour

// TrackingSyncConfig configures shipment writeback
type TrackingSyncConfig struct {
	// WebhookSecret is the HMAC-SHA256 key for webhook signatures; empty disables verification
	WebhookSecret string
	// Idempotency controls webhook replay detection
	Idempotency shared.IdempotencyConfig
}

// ShipmentPollResult summarizes one PollShipments call
type ShipmentPollResult struct {
	ShipmentsFound int `json:"shipmentsFound"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// TrackingSyncService pushes shipment tracking from the destination back to the source ERP
type TrackingSyncService struct {
	source      integration.SourceERP
	destination integration.Destination
	store       shared.IdempotencyStore
	activity    *ActivityTracker
	observer    SyncObserver
	config      TrackingSyncConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewTrackingSyncService creates a new TrackingSyncService. store may be nil, in
// which case replays are not detected.
func NewTrackingSyncService(
	source integration.SourceERP,
	destination integration.Destination,
	store shared.IdempotencyStore,
	activity *ActivityTracker,
	observer SyncObserver,
	config TrackingSyncConfig,
	logger *zap.Logger,
) *TrackingSyncService {
	if observer == nil {
		observer = nopSyncObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Idempotency.TTL <= 0 {
		config.Idempotency.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &TrackingSyncService{
		source:      source,
		destination: destination,
		store:       store,
		activity:    activity,
		observer:    observer,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// VerifySignature checks a hex HMAC-SHA256 signature over the raw request body.
// With no secret configured every request is trusted.
func (s *TrackingSyncService) VerifySignature(body []byte, signature string) bool {
	if s.config.WebhookSecret == "" {
		s.logger.Warn("No webhook secret configured, skipping signature validation")
		return true
	}
	if signature == "" {
		s.logger.Warn("Missing webhook signature")
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// compared byte for byte; a re-cased or padded header is a different signature
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ProcessShipmentEvent writes the tracking of one shipment event back to the
// source ERP. Events for orders the connector did not create are acknowledged
// as a no-op. A missing payload returns ErrWebhookPayloadMissing alongside a
// failed result.
func (s *TrackingSyncService) ProcessShipmentEvent(ctx context.Context, event integration.ShipmentEvent) (*integration.WritebackResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking_sync", "process_event",
		telemetry.WithAttribute(telemetry.SpanAttrResourceType, event.ResourceType),
	)
	defer span.End()

	log := s.logger.With(
		zap.String("resource_type", event.ResourceType),
		zap.String("resource_url", event.ResourceURL),
	)
	log.Info("Processing shipment webhook")

	if !event.IsShipment() {
		log.Debug("Ignoring non-shipment webhook")
		s.observer.ObserveWebhook(WebhookResultIgnored)
		return &integration.WritebackResult{
			Success: true,
			Message: "Ignoring event type: " + event.ResourceType,
		}, nil
	}

	if event.Data == nil {
		log.Warn("Resource data not included in webhook")
		s.observer.ObserveWebhook(WebhookResultFailed)
		s.activity.RecordWebhook(false, "Resource data not included in webhook")
		telemetry.RecordError(span, integration.ErrWebhookPayloadMissing)
		return &integration.WritebackResult{
			Success: false,
			Message: "Resource data not included in webhook",
		}, integration.ErrWebhookPayloadMissing
	}

	key := event.DedupeKey()
	if s.isDuplicate(ctx, key, log) {
		log.Info("Duplicate shipment webhook acknowledged", zap.String("event_key", key))
		s.observer.ObserveWebhook(WebhookResultDuplicate)
		return &integration.WritebackResult{Success: true, Message: "Duplicate event"}, nil
	}

	data := event.Data
	orderID, ok := s.recoverOrderID(ctx, data, log)
	if !ok {
		log.Debug("Order is not an IQR order, skipping", zap.String("order_number", data.OrderNumber))
		s.observer.ObserveWebhook(WebhookResultNotOurs)
		return &integration.WritebackResult{Success: true, Message: "Not an IQR order"}, nil
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSourceOrderID, orderID,
		telemetry.SpanAttrOrderNumber, data.OrderNumber,
	)

	err := s.writeback(ctx, integration.TrackingUpdate{
		OrderID:        orderID,
		TrackingNumber: data.TrackingNumber,
		Carrier:        data.CarrierCode,
		ShipDate:       data.ShipDate,
		ShippingMethod: data.ServiceCode,
	})
	s.source.EndSession(context.WithoutCancel(ctx))

	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to update tracking in IQR",
			zap.String("order_id", orderID),
			zap.String("order_number", data.OrderNumber),
			zap.Error(err),
		)
		s.observer.ObserveWebhook(WebhookResultFailed)
		s.activity.RecordWebhook(false, err.Error())
		return &integration.WritebackResult{Success: false, Message: err.Error(), OrderID: orderID}, nil
	}

	s.markProcessed(ctx, key, log)

	message := fmt.Sprintf("Updated tracking for order %s", orderID)
	log.Info("Tracking updated in IQR",
		zap.String("order_id", orderID),
		zap.String("tracking_number", data.TrackingNumber),
		zap.String("carrier", data.CarrierCode),
	)
	telemetry.SetOK(span)
	s.observer.ObserveWebhook(WebhookResultUpdated)
	s.activity.RecordWebhook(true, message)
	return &integration.WritebackResult{Success: true, Message: message, OrderID: orderID}, nil
}

// PollShipments writes back every shipment created since the given time
// (default: the last 24 hours). Per-shipment failures are counted and logged.
func (s *TrackingSyncService) PollShipments(ctx context.Context, since time.Time) (*ShipmentPollResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking_sync", "poll_shipments")
	defer span.End()
	defer s.source.EndSession(context.WithoutCancel(ctx))

	if since.IsZero() {
		since = s.now().Add(-defaultPollWindow)
	}
	s.logger.Info("Polling for shipments", zap.Time("since", since))

	shipments, err := s.destination.ListShipments(ctx, integration.ShipmentQuery{CreateDateStart: since})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list shipments: %w", err)
	}

	result := &ShipmentPollResult{ShipmentsFound: len(shipments)}
	for _, shipment := range shipments {
		orderID, ok := integration.ResolveSourceOrderID("", shipment.OrderKey, shipment.OrderNumber)
		if !ok {
			result.Skipped++
			continue
		}

		err := s.writeback(ctx, integration.TrackingUpdate{
			OrderID:        orderID,
			TrackingNumber: shipment.TrackingNumber,
			Carrier:        shipment.CarrierCode,
			ShipDate:       shipment.ShipDate,
			ShippingMethod: shipment.ServiceCode,
		})
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to update tracking from polled shipment",
				zap.String("order_id", orderID),
				zap.Int64("shipment_id", shipment.ShipmentID),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			continue
		}
		result.Updated++
	}

	s.logger.Info("Shipment polling completed",
		zap.Int("found", result.ShipmentsFound),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	telemetry.SetOK(span)
	return result, nil
}

func (s *TrackingSyncService) writeback(ctx context.Context, update integration.TrackingUpdate) error {
	return s.source.UpdateOrderTracking(ctx, update)
}

// recoverOrderID maps an event to its source order ID, fetching the destination
// order when the payload alone does not carry it
func (s *TrackingSyncService) recoverOrderID(ctx context.Context, data *integration.ShipmentEventData, log *zap.Logger) (string, bool) {
	if id, ok := integration.ResolveSourceOrderID(data.CustomField1, data.OrderKey, data.OrderNumber); ok {
		return id, true
	}

	destinationID, err := strconv.ParseInt(strings.TrimSpace(data.OrderID), 10, 64)
	if err != nil || destinationID <= 0 {
		return "", false
	}

	order, err := s.destination.GetOrder(ctx, destinationID)
	if err != nil {
		log.Warn("Failed to fetch destination order for ID recovery",
			zap.Int64("destination_order_id", destinationID),
			zap.Error(err),
		)
		return "", false
	}
	return integration.ResolveSourceOrderID(order.AdvancedOptions.CustomField1, order.OrderKey, order.OrderNumber)
}

func (s *TrackingSyncService) isDuplicate(ctx context.Context, key string, log *zap.Logger) bool {
	if s.store == nil || !s.config.Idempotency.Enabled {
		return false
	}
	seen, err := s.store.IsProcessed(ctx, key)
	if err != nil {
		log.Warn("Idempotency lookup failed, processing event", zap.String("event_key", key), zap.Error(err))
		return false
	}
	return seen
}

func (s *TrackingSyncService) markProcessed(ctx context.Context, key string, log *zap.Logger) {
	if s.store == nil || !s.config.Idempotency.Enabled {
		return
	}
	if _, err := s.store.MarkProcessed(ctx, key, s.config.Idempotency.TTL); err != nil {
		log.Warn("Failed to record processed event", zap.String("event_key", key), zap.Error(err))
	}
}
