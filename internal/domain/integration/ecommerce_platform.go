package integration

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured    = errors.New("integration: platform not configured")
	ErrPlatformUnavailable      = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed    = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed       = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited      = errors.New("integration: platform rate limited")
	ErrPlatformInvalidSignature = errors.New("integration: invalid platform signature")

	// Order sync errors
	ErrOrderSyncInvalidOrder  = errors.New("integration: invalid order for sync")
	ErrOrderSyncOrderNotFound = errors.New("integration: platform order not found")
	ErrSyncAlreadyInProgress  = errors.New("integration: order sync already in progress")
	ErrStoreNotFound          = errors.New("integration: destination store not found")

	// Tracking writeback errors
	ErrWebhookPayloadMissing = errors.New("integration: webhook resource data not included")
	ErrInvalidTrackingUpdate = errors.New("integration: invalid tracking update")
)

// ---------------------------------------------------------------------------
// PlatformCode represents one side of the connector
// ---------------------------------------------------------------------------

// PlatformCode identifies an external platform the connector talks to
type PlatformCode string

const (
	// PlatformCodeIQR is the IQ Reseller ERP, the source of sales orders
	PlatformCodeIQR PlatformCode = "IQR"
	// PlatformCodeShipStation is the ShipStation fulfillment platform
	PlatformCodeShipStation PlatformCode = "SHIPSTATION"
)

// IsValid returns true if the platform code is valid
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeIQR, PlatformCodeShipStation:
		return true
	}
	return false
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformCodeIQR:
		return "IQ Reseller"
	case PlatformCodeShipStation:
		return "ShipStation"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// Destination Order Status
// ---------------------------------------------------------------------------

// DestinationOrderStatus represents an order status on the destination platform
type DestinationOrderStatus string

const (
	DestinationOrderStatusAwaitingPayment  DestinationOrderStatus = "awaiting_payment"
	DestinationOrderStatusAwaitingShipment DestinationOrderStatus = "awaiting_shipment"
	DestinationOrderStatusShipped          DestinationOrderStatus = "shipped"
	DestinationOrderStatusOnHold           DestinationOrderStatus = "on_hold"
	DestinationOrderStatusCancelled        DestinationOrderStatus = "cancelled"
)

// IsValid returns true if the status is valid
func (s DestinationOrderStatus) IsValid() bool {
	switch s {
	case DestinationOrderStatusAwaitingPayment, DestinationOrderStatusAwaitingShipment,
		DestinationOrderStatusShipped, DestinationOrderStatusOnHold, DestinationOrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DestinationOrderStatus
func (s DestinationOrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Port Interfaces
// ---------------------------------------------------------------------------

// SourceERP is the port to the upstream system of record for sales orders.
// Implementations own a single session and must collapse concurrent
// authentication attempts into one request.
type SourceERP interface {
	// Authenticate ensures a valid session exists
	Authenticate(ctx context.Context) error

	// EndSession invalidates the current session. Failures are logged, never returned.
	EndSession(ctx context.Context)

	// FetchOrders walks every listing page and returns all orders currently visible.
	// Zero orders is a valid result, not an error.
	FetchOrders(ctx context.Context) ([]SourceOrder, error)

	// UpdateOrderTracking writes tracking fields back onto a sales order
	UpdateOrderTracking(ctx context.Context, update TrackingUpdate) error
}

// Destination is the port to the downstream fulfillment platform
type Destination interface {
	// CreateOrder creates or updates an order keyed by its OrderKey
	CreateOrder(ctx context.Context, order *DestinationOrder) (*CreatedOrder, error)

	// ListStores returns all stores configured on the account
	ListStores(ctx context.Context) ([]Store, error)

	// GetOrder returns a single order by the platform's numeric order ID
	GetOrder(ctx context.Context, orderID int64) (*DestinationOrder, error)

	// ListShipments returns shipments matching the query
	ListShipments(ctx context.Context, query ShipmentQuery) ([]Shipment, error)
}

// ShipmentQuery filters a shipment listing. Zero values are omitted.
type ShipmentQuery struct {
	OrderNumber     string
	CreateDateStart time.Time
	CreateDateEnd   time.Time
}

// IsTransient reports whether err is a transient upstream fault worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrPlatformUnavailable) || errors.Is(err, ErrPlatformRateLimited)
}
