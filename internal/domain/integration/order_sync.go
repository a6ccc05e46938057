package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync Stages
// ---------------------------------------------------------------------------

// SyncStage represents the current step of an order sync run
type SyncStage string

const (
	SyncStageIdle           SyncStage = "IDLE"
	SyncStageResolvingStore SyncStage = "RESOLVING_STORE"
	SyncStageFetching       SyncStage = "FETCHING"
	SyncStageFiltering      SyncStage = "FILTERING"
	SyncStageTransforming   SyncStage = "TRANSFORMING"
	SyncStageDispatching    SyncStage = "DISPATCHING"
	SyncStageEndingSession  SyncStage = "ENDING_SESSION"
	SyncStageCompleting     SyncStage = "COMPLETING"
)

// IsValid returns true if the stage is valid
func (s SyncStage) IsValid() bool {
	switch s {
	case SyncStageIdle, SyncStageResolvingStore, SyncStageFetching, SyncStageFiltering,
		SyncStageTransforming, SyncStageDispatching, SyncStageEndingSession, SyncStageCompleting:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStage
func (s SyncStage) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// SyncResult summarizes one order sync run. Success reflects that the
// orchestration completed, not that every order was delivered.
type SyncResult struct {
	// RunID identifies the run in logs and activity history
	RunID uuid.UUID
	// Success is false only when the run itself failed
	Success bool
	// OrdersProcessed counts orders accepted by the destination
	OrdersProcessed int
	// OrdersFailed counts orders the destination rejected or that could not be sent
	OrdersFailed int
	// Errors has one entry per failed order
	Errors []SyncError
	// StartedAt is when the run left IDLE
	StartedAt time.Time
	// Duration is the wall time of the run
	Duration time.Duration
}

// SyncError attributes a delivery failure to a source order number
type SyncError struct {
	OrderNumber string
	Error       string
}

// NewSyncResult creates an empty successful result for a new run
func NewSyncResult() *SyncResult {
	return &SyncResult{
		RunID:     uuid.New(),
		Success:   true,
		Errors:    []SyncError{},
		StartedAt: time.Now(),
	}
}

// RecordSuccess counts one delivered order
func (r *SyncResult) RecordSuccess() {
	r.OrdersProcessed++
}

// RecordFailure counts one failed order and keeps its error
func (r *SyncResult) RecordFailure(orderNumber string, err error) {
	r.OrdersFailed++
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.Errors = append(r.Errors, SyncError{OrderNumber: orderNumber, Error: msg})
}

// Message returns a one-line summary suitable for activity history
func (r *SyncResult) Message() string {
	if r.OrdersProcessed > 0 {
		return fmt.Sprintf("Synced %d orders", r.OrdersProcessed)
	}
	return "No new orders to sync"
}

// ---------------------------------------------------------------------------
// Tracking writeback types
// ---------------------------------------------------------------------------

// TrackingUpdate carries shipment tracking back to a source ERP sales order
type TrackingUpdate struct {
	// OrderID is the source ERP sales order ID
	OrderID        string
	TrackingNumber string
	Carrier        string
	ShipDate       string
	ShippingMethod string
}

// Validate checks that the update can be addressed to a sales order
func (u TrackingUpdate) Validate() error {
	if strings.TrimSpace(u.OrderID) == "" {
		return fmt.Errorf("%w: order ID is required", ErrInvalidTrackingUpdate)
	}
	return nil
}

// Shipment event resource types that carry tracking information
const (
	ResourceTypeShipment           = "shipment"
	ResourceTypeFulfillmentShipped = "fulfillment_shipped"
)

// ShipmentEvent is an inbound shipment notification from the destination platform
type ShipmentEvent struct {
	ResourceType string
	ResourceURL  string
	// Data is nil when the platform only sent a resource URL
	Data *ShipmentEventData
}

// IsShipment returns true for resource types that carry tracking information
func (e ShipmentEvent) IsShipment() bool {
	return e.ResourceType == ResourceTypeShipment || e.ResourceType == ResourceTypeFulfillmentShipped
}

// ShipmentEventData is the embedded shipment of a ShipmentEvent
type ShipmentEventData struct {
	ShipmentID     string
	OrderID        string
	OrderNumber    string
	OrderKey       string
	CustomField1   string
	TrackingNumber string
	CarrierCode    string
	ServiceCode    string
	ShipDate       string
}

// DedupeKey identifies a shipment event for replay detection
func (e ShipmentEvent) DedupeKey() string {
	if e.Data == nil {
		return e.ResourceType + ":" + e.ResourceURL
	}
	return e.ResourceType + ":" + e.Data.OrderNumber + ":" + e.Data.TrackingNumber
}

// WritebackResult is the outcome of processing one shipment event
type WritebackResult struct {
	Success bool
	Message string
	// OrderID is the recovered source order ID, empty when the event was not ours
	OrderID string
}
