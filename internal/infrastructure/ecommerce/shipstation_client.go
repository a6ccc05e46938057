package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/infrastructure/retry"
)

// shipStationDateLayout is the layout ShipStation expects for date filters
const shipStationDateLayout = "2006-01-02 15:04:05"

// ShipStationClient implements integration.Destination against the ShipStation v1 API
type ShipStationClient struct {
	config     *ShipStationConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   RequestObserver
	logger     *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewShipStationClient creates a new ShipStation client with the given configuration
func NewShipStationClient(config *ShipStationConfig, observer RequestObserver, logger *zap.Logger) (*ShipStationClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	every := time.Minute / time.Duration(config.RequestsPerMinute)
	return &ShipStationClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Every(every), config.RequestsPerMinute),
		observer: observer,
		logger:   logger.With(zap.String("platform", integration.PlatformCodeShipStation.String())),
		now:      time.Now,
		sleep:    retry.Sleep,
	}, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder creates an order, or updates the one already carrying the same order key
func (c *ShipStationClient) CreateOrder(ctx context.Context, order *integration.DestinationOrder) (*integration.CreatedOrder, error) {
	if order == nil || order.OrderNumber == "" {
		return nil, fmt.Errorf("%w: order number is required", integration.ErrOrderSyncInvalidOrder)
	}

	var resp ShipStationCreateOrderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/createorder", nil, toShipStationOrder(order), &resp); err != nil {
		return nil, err
	}

	return &integration.CreatedOrder{
		OrderID:     resp.OrderID,
		OrderNumber: resp.OrderNumber,
		OrderKey:    resp.OrderKey,
	}, nil
}

// CreateOrders creates or updates up to 100 orders in one call.
// Per-order failures are reported in the results, not as an error.
func (c *ShipStationClient) CreateOrders(ctx context.Context, orders []*integration.DestinationOrder) ([]ShipStationCreateOrderResult, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	body := make([]ShipStationOrder, 0, len(orders))
	for _, order := range orders {
		body = append(body, toShipStationOrder(order))
	}

	var resp ShipStationCreateOrdersResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/createorders", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.HasErrors {
		c.logger.Warn("Bulk order create reported failures", zap.Int("orders", len(orders)))
	}
	return resp.Results, nil
}

// GetOrder returns a single order by its ShipStation order ID
func (c *ShipStationClient) GetOrder(ctx context.Context, orderID int64) (*integration.DestinationOrder, error) {
	var order ShipStationOrder
	if err := c.doRequest(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(orderID, 10), nil, nil, &order); err != nil {
		return nil, err
	}
	return order.toDomain(), nil
}

// ---------------------------------------------------------------------------
// Shipments
// ---------------------------------------------------------------------------

// ListShipments returns every shipment matching the query, following pagination
func (c *ShipStationClient) ListShipments(ctx context.Context, query integration.ShipmentQuery) ([]integration.Shipment, error) {
	params := url.Values{}
	if query.OrderNumber != "" {
		params.Set("orderNumber", query.OrderNumber)
	}
	if !query.CreateDateStart.IsZero() {
		params.Set("createDateStart", query.CreateDateStart.Format(shipStationDateLayout))
	}
	if !query.CreateDateEnd.IsZero() {
		params.Set("createDateEnd", query.CreateDateEnd.Format(shipStationDateLayout))
	}
	params.Set("pageSize", strconv.Itoa(c.config.ShipmentPageSize))

	var shipments []integration.Shipment
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))

		var resp ShipStationShipmentsResponse
		if err := c.doRequest(ctx, http.MethodGet, "/shipments", params, nil, &resp); err != nil {
			return nil, err
		}
		for _, s := range resp.Shipments {
			shipments = append(shipments, s.toDomain())
		}

		if page >= resp.Pages || len(resp.Shipments) == 0 {
			break
		}
	}
	return shipments, nil
}

// GetShipmentByOrderNumber returns the first shipment for an order number, or nil
func (c *ShipStationClient) GetShipmentByOrderNumber(ctx context.Context, orderNumber string) (*integration.Shipment, error) {
	shipments, err := c.ListShipments(ctx, integration.ShipmentQuery{OrderNumber: orderNumber})
	if err != nil {
		return nil, err
	}
	if len(shipments) == 0 {
		return nil, nil
	}
	return &shipments[0], nil
}

// ---------------------------------------------------------------------------
// Stores
// ---------------------------------------------------------------------------

// ListStores returns all stores on the account
func (c *ShipStationClient) ListStores(ctx context.Context) ([]integration.Store, error) {
	var resp []ShipStationStore
	if err := c.doRequest(ctx, http.MethodGet, "/stores", nil, nil, &resp); err != nil {
		return nil, err
	}

	stores := make([]integration.Store, 0, len(resp))
	for _, s := range resp {
		stores = append(stores, s.toDomain())
	}
	return stores, nil
}

// GetStoreByName finds a store by name, ignoring case and surrounding spaces
func (c *ShipStationClient) GetStoreByName(ctx context.Context, name string) (*integration.Store, error) {
	stores, err := c.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	return integration.FindStoreByName(stores, name)
}

// Ping checks that the API accepts the configured credentials
func (c *ShipStationClient) Ping(ctx context.Context) error {
	_, err := c.ListStores(ctx)
	return err
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs a throttled, authenticated request. A 429 waits for the
// advertised Retry-After and is replayed once; a second 429 is returned.
func (c *ShipStationClient) doRequest(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("shipstation: failed to encode request: %w", err)
		}
	}

	endpoint := strings.TrimRight(c.config.APIBaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, body, err := c.send(ctx, method, endpoint, encoded)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := c.retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("ShipStation rate limited, waiting",
				zap.String("path", path),
				zap.Duration("retry_after", wait),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return newAPIError(integration.PlatformCodeShipStation, method, path, resp.StatusCode, body)
		}

		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %s %s: %v", integration.ErrPlatformInvalidResponse, method, path, err)
		}
		return nil
	}
}

func (c *ShipStationClient) send(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("shipstation: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.APIKey, c.config.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveRequest(integration.PlatformCodeShipStation, method, 0, time.Since(started))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()
	c.observer.ObserveRequest(integration.PlatformCodeShipStation, method, resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}
	return resp, body, nil
}

// retryAfter parses a Retry-After header given as seconds or an HTTP date
func (c *ShipStationClient) retryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.config.DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(c.now()); wait > 0 {
			return wait
		}
		return 0
	}
	return c.config.DefaultRetryAfter
}

var _ integration.Destination = (*ShipStationClient)(nil)
