package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Sync DTOs
// ---------------------------------------------------------------------------

// SyncOrdersRequest is the body of a manual order sync trigger
type SyncOrdersRequest struct {
	FromDate    string `json:"fromDate,omitempty"`
	ToDate      string `json:"toDate,omitempty"`
	OrderStatus string `json:"orderStatus,omitempty" binding:"omitempty,max=64"`
}

// ToSyncOptions parses the request dates. Dates are RFC3339 or YYYY-MM-DD; a
// date-only ToDate covers the whole day.
func (r SyncOrdersRequest) ToSyncOptions() (SyncOptions, error) {
	opts := SyncOptions{OrderStatus: strings.TrimSpace(r.OrderStatus)}

	if r.FromDate != "" {
		from, _, err := parseRequestDate(r.FromDate)
		if err != nil {
			return SyncOptions{}, fmt.Errorf("invalid fromDate: %w", err)
		}
		opts.From = from
	}
	if r.ToDate != "" {
		to, dateOnly, err := parseRequestDate(r.ToDate)
		if err != nil {
			return SyncOptions{}, fmt.Errorf("invalid toDate: %w", err)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		opts.To = to
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return SyncOptions{}, fmt.Errorf("toDate must not be before fromDate")
	}
	return opts, nil
}

// SyncShipmentsRequest is the body of a manual shipment poll trigger
type SyncShipmentsRequest struct {
	Since string `json:"since,omitempty"`
}

// SinceTime parses Since; a blank value yields the zero time
func (r SyncShipmentsRequest) SinceTime() (time.Time, error) {
	if strings.TrimSpace(r.Since) == "" {
		return time.Time{}, nil
	}
	since, _, err := parseRequestDate(r.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since: %w", err)
	}
	return since, nil
}

func parseRequestDate(value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is not RFC3339 or YYYY-MM-DD", value)
	}
	return t, true, nil
}

// SyncResultResponse represents a sync run in API responses
type SyncResultResponse struct {
	RunID           uuid.UUID           `json:"runId"`
	Success         bool                `json:"success"`
	OrdersProcessed int                 `json:"ordersProcessed"`
	OrdersFailed    int                 `json:"ordersFailed"`
	Errors          []SyncErrorResponse `json:"errors"`
	StartedAt       time.Time           `json:"startedAt"`
	DurationMs      int64               `json:"durationMs"`
}

// SyncErrorResponse attributes a failure to an order number
type SyncErrorResponse struct {
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error"`
}

// ToSyncResultResponse converts a domain SyncResult to a response DTO
func ToSyncResultResponse(r *integration.SyncResult) SyncResultResponse {
	errs := make([]SyncErrorResponse, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = SyncErrorResponse{OrderNumber: e.OrderNumber, Error: e.Error}
	}
	return SyncResultResponse{
		RunID:           r.RunID,
		Success:         r.Success,
		OrdersProcessed: r.OrdersProcessed,
		OrdersFailed:    r.OrdersFailed,
		Errors:          errs,
		StartedAt:       r.StartedAt,
		DurationMs:      r.Duration.Milliseconds(),
	}
}

// ---------------------------------------------------------------------------
// Webhook DTOs
// ---------------------------------------------------------------------------

// ShipmentWebhookRequest is the inbound shipment webhook body
type ShipmentWebhookRequest struct {
	ResourceURL  string               `json:"resource_url"`
	ResourceType string               `json:"resource_type"`
	Data         *ShipmentWebhookData `json:"data,omitempty"`
}

// ShipmentWebhookData is the shipment embedded in a webhook
type ShipmentWebhookData struct {
	ShipmentID     flexString `json:"shipment_id"`
	OrderID        flexString `json:"order_id"`
	OrderNumber    string     `json:"order_number"`
	OrderKey       string     `json:"order_key,omitempty"`
	CustomField1   string     `json:"custom_field1,omitempty"`
	TrackingNumber string     `json:"tracking_number"`
	CarrierCode    string     `json:"carrier_code"`
	ServiceCode    string     `json:"service_code"`
	ShipDate       string     `json:"ship_date"`
}

// ToDomain converts the webhook body to a domain ShipmentEvent
func (r ShipmentWebhookRequest) ToDomain() integration.ShipmentEvent {
	event := integration.ShipmentEvent{
		ResourceType: r.ResourceType,
		ResourceURL:  r.ResourceURL,
	}
	if r.Data != nil {
		event.Data = &integration.ShipmentEventData{
			ShipmentID:     string(r.Data.ShipmentID),
			OrderID:        string(r.Data.OrderID),
			OrderNumber:    r.Data.OrderNumber,
			OrderKey:       r.Data.OrderKey,
			CustomField1:   r.Data.CustomField1,
			TrackingNumber: r.Data.TrackingNumber,
			CarrierCode:    r.Data.CarrierCode,
			ServiceCode:    r.Data.ServiceCode,
			ShipDate:       r.Data.ShipDate,
		}
	}
	return event
}

// flexString accepts a JSON string or number
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}

// WritebackResponse represents a webhook outcome in API responses
type WritebackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

// ToWritebackResponse converts a domain WritebackResult to a response DTO
func ToWritebackResponse(r *integration.WritebackResult) WritebackResponse {
	return WritebackResponse{Success: r.Success, Message: r.Message, OrderID: r.OrderID}
}

// ---------------------------------------------------------------------------
// Activity DTOs
// ---------------------------------------------------------------------------

// ActivityStatsResponse represents activity statistics in API responses
type ActivityStatsResponse struct {
	Last24Hours    WindowStatsResponse      `json:"last24Hours"`
	AllTime        AllTimeStatsResponse     `json:"allTime"`
	RecentActivity []ActivityRecordResponse `json:"recentActivity"`
}

// WindowStatsResponse represents the rolling-window statistics
type WindowStatsResponse struct {
	TotalSyncs      int        `json:"totalSyncs"`
	SuccessfulSyncs int        `json:"successfulSyncs"`
	FailedSyncs     int        `json:"failedSyncs"`
	OrdersProcessed int        `json:"ordersProcessed"`
	OrdersFailed    int        `json:"ordersFailed"`
	LastSyncTime    *time.Time `json:"lastSyncTime"`
}

// AllTimeStatsResponse represents the since-start statistics
type AllTimeStatsResponse struct {
	TotalSyncs      int       `json:"totalSyncs"`
	OrdersProcessed int       `json:"ordersProcessed"`
	StartTime       time.Time `json:"startTime"`
}

// ActivityRecordResponse represents one activity record
type ActivityRecordResponse struct {
	ID              uuid.UUID `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Type            string    `json:"type"`
	Success         bool      `json:"success"`
	OrdersProcessed int       `json:"ordersProcessed"`
	OrdersFailed    int       `json:"ordersFailed"`
	DurationMs      int64     `json:"durationMs,omitempty"`
	Message         string    `json:"message,omitempty"`
}

// ToActivityStatsResponse converts domain ActivityStats to a response DTO
func ToActivityStatsResponse(s integration.ActivityStats) ActivityStatsResponse {
	recent := make([]ActivityRecordResponse, len(s.RecentActivity))
	for i, r := range s.RecentActivity {
		recent[i] = ActivityRecordResponse{
			ID:              r.ID,
			Timestamp:       r.Timestamp,
			Type:            string(r.Type),
			Success:         r.Success,
			OrdersProcessed: r.OrdersProcessed,
			OrdersFailed:    r.OrdersFailed,
			DurationMs:      r.Duration.Milliseconds(),
			Message:         r.Message,
		}
	}
	return ActivityStatsResponse{
		Last24Hours: WindowStatsResponse{
			TotalSyncs:      s.Last24Hours.TotalSyncs,
			SuccessfulSyncs: s.Last24Hours.SuccessfulSyncs,
			FailedSyncs:     s.Last24Hours.FailedSyncs,
			OrdersProcessed: s.Last24Hours.OrdersProcessed,
			OrdersFailed:    s.Last24Hours.OrdersFailed,
			LastSyncTime:    s.Last24Hours.LastSyncTime,
		},
		AllTime: AllTimeStatsResponse{
			TotalSyncs:      s.AllTime.TotalSyncs,
			OrdersProcessed: s.AllTime.OrdersProcessed,
			StartTime:       s.AllTime.StartTime,
		},
		RecentActivity: recent,
	}
}
