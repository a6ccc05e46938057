package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/integration"
)

const (
	iqrListOrdersPath     = "/webapi.svc/SO/JSON/GetSOs"
	iqrUpdateTrackingPath = "/webapi.svc/SO/UDFS/JSON"
	iqrSessionHeader      = "iqr-session-token"
)

// IQRClient implements integration.SourceERP against the IQ Reseller web API
type IQRClient struct {
	config     *IQRConfig
	httpClient *http.Client
	session    *IQRSession
	observer   RequestObserver
	logger     *zap.Logger
}

// NewIQRClient creates a new IQR client with the given configuration
func NewIQRClient(config *IQRConfig, observer RequestObserver, logger *zap.Logger) (*IQRClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}

	return &IQRClient{
		config:     config,
		httpClient: httpClient,
		session:    NewIQRSession(config, httpClient, observer, logger),
		observer:   observer,
		logger:     logger.With(zap.String("platform", integration.PlatformCodeIQR.String())),
	}, nil
}

// Session exposes the client's session manager
func (c *IQRClient) Session() *IQRSession {
	return c.session
}

// Authenticate ensures a valid session exists
func (c *IQRClient) Authenticate(ctx context.Context) error {
	return c.session.Authenticate(ctx)
}

// EndSession best-effort closes the current session
func (c *IQRClient) EndSession(ctx context.Context) {
	c.session.EndSession(ctx)
}

// ---------------------------------------------------------------------------
// Order Listing
// ---------------------------------------------------------------------------

// FetchOrders walks the paged sales-order listing and returns every order seen.
// Pages that fail are logged and skipped without counting as empty.
// Authentication failures and context cancellation abort the walk.
func (c *IQRClient) FetchOrders(ctx context.Context) ([]integration.SourceOrder, error) {
	var (
		orders     []integration.SourceOrder
		emptyPages int
		errorPages int
		lastPage   int
	)

	for page := 0; page <= c.config.MaxPage && emptyPages < c.config.MaxEmptyPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastPage = page

		if page > 0 && c.config.SessionRefreshPages > 0 && page%c.config.SessionRefreshPages == 0 {
			c.logger.Debug("Refreshing IQR session", zap.Int("page", page))
			if err := c.session.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("iqr: session refresh at page %d: %w", page, err)
			}
		}

		batch, err := c.fetchPage(ctx, page)
		if err != nil {
			if errors.Is(err, integration.ErrPlatformAuthFailed) || ctx.Err() != nil {
				return nil, err
			}
			errorPages++
			c.logger.Warn("Skipping IQR page after error",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		if len(batch) == 0 {
			emptyPages++
			continue
		}
		emptyPages = 0

		for _, raw := range batch {
			orders = append(orders, integration.NormalizeSourceOrder(raw.toRawSourceOrder()))
		}
	}

	c.logger.Info("Fetched IQR orders",
		zap.Int("orders", len(orders)),
		zap.Int("last_page", lastPage),
		zap.Int("error_pages", errorPages),
	)
	return orders, nil
}

func (c *IQRClient) fetchPage(ctx context.Context, page int) ([]IQRSalesOrder, error) {
	query := url.Values{}
	query.Set("Page", strconv.Itoa(page))
	query.Set("PageSize", strconv.Itoa(c.config.PageSize))
	query.Set("SortBy", "0")

	body, err := c.doRequest(ctx, http.MethodGet, iqrListOrdersPath, query, nil)
	if err != nil {
		return nil, err
	}

	// the listing answers null instead of [] past the end
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var orders []IQRSalesOrder
	if err := json.Unmarshal(trimmed, &orders); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", integration.ErrPlatformInvalidResponse, page, err)
	}
	return orders, nil
}

// ---------------------------------------------------------------------------
// Tracking Writeback
// ---------------------------------------------------------------------------

// UpdateOrderTracking writes tracking details into the order's user-defined fields
func (c *IQRClient) UpdateOrderTracking(ctx context.Context, update integration.TrackingUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if _, err := c.doRequest(ctx, http.MethodPost, iqrUpdateTrackingPath, nil, newIQRTrackingRequest(update)); err != nil {
		return fmt.Errorf("iqr: update tracking for SO %s: %w", update.OrderID, err)
	}

	c.logger.Info("Updated IQR order tracking",
		zap.String("order_id", update.OrderID),
		zap.String("carrier", update.Carrier),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated request. A 401 invalidates the token
// and the request is replayed once with a fresh session.
func (c *IQRClient) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("iqr: failed to encode request: %w", err)
		}
	}

	endpoint := strings.TrimRight(c.config.APIBaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		token, err := c.session.Token(ctx)
		if err != nil {
			return nil, err
		}

		status, body, err := c.send(ctx, method, endpoint, encoded, token)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.logger.Info("IQR session rejected, re-authenticating", zap.String("path", path))
			c.session.Invalidate(token)
			continue
		}
		if status >= 400 {
			return nil, newAPIError(integration.PlatformCodeIQR, method, path, status, body)
		}
		return body, nil
	}
}

func (c *IQRClient) send(ctx context.Context, method, endpoint string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("iqr: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(iqrSessionHeader, token)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveRequest(integration.PlatformCodeIQR, method, 0, time.Since(started))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()
	c.observer.ObserveRequest(integration.PlatformCodeIQR, method, resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

var _ integration.SourceERP = (*IQRClient)(nil)
