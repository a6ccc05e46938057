package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Server
// ---------------------------------------------------------------------------

// fakeIQR serves the session and listing endpoints of the IQ Reseller API
type fakeIQR struct {
	mu sync.Mutex

	sessions      atomic.Int32
	endSessions   atomic.Int32
	sessionDelay  time.Duration
	sessionStatus int

	// pages maps a page index to the orders it returns
	pages map[int][]IQRSalesOrder
	// failPages answer 500 for the given page index
	failPages map[int]bool
	// unauthorized answers 401 to this many listing requests before succeeding
	unauthorized int
	// alwaysUnauthorized answers 401 to every listing request
	alwaysUnauthorized bool

	requestedPages []int
	tokensSeen     []string
	trackingBodies []IQRTrackingRequest
}

func newFakeIQR() *fakeIQR {
	return &fakeIQR{
		pages:     make(map[int][]IQRSalesOrder),
		failPages: make(map[int]bool),
	}
}

func (f *fakeIQR) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == iqrSessionPath && r.Method == http.MethodPost:
		n := f.sessions.Add(1)
		if f.sessionDelay > 0 {
			time.Sleep(f.sessionDelay)
		}
		if f.sessionStatus != 0 {
			w.WriteHeader(f.sessionStatus)
			return
		}
		var req IQRSessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.APIToken != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(IQRSessionResponse{Data: fmt.Sprintf("token-%d", n)})

	case r.URL.Path == iqrSessionPath && r.Method == http.MethodDelete:
		f.endSessions.Add(1)
		w.WriteHeader(http.StatusOK)

	case r.URL.Path == iqrListOrdersPath:
		page, _ := strconv.Atoi(r.URL.Query().Get("Page"))
		f.mu.Lock()
		f.requestedPages = append(f.requestedPages, page)
		f.tokensSeen = append(f.tokensSeen, r.Header.Get(iqrSessionHeader))
		if f.alwaysUnauthorized || f.unauthorized > 0 {
			f.unauthorized--
			f.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		orders := f.pages[page]
		fail := f.failPages[page]
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if orders == nil {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(orders)

	case r.URL.Path == iqrUpdateTrackingPath:
		var req IQRTrackingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.trackingBodies = append(f.trackingBodies, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestIQRClient(t *testing.T, fake *fakeIQR, tweak func(*IQRConfig)) *IQRClient {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	config := NewIQRConfig("test-key")
	config.AuthURL = server.URL
	config.APIBaseURL = server.URL
	config.MaxPage = 20
	config.MaxEmptyPages = 3
	if tweak != nil {
		tweak(config)
	}

	client, err := NewIQRClient(config, nil, zap.NewNop())
	require.NoError(t, err)
	return client
}

func salesOrders(ids ...int64) []IQRSalesOrder {
	orders := make([]IQRSalesOrder, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, IQRSalesOrder{SO: id, Status: "Open", ClientID: "CLIENT"})
	}
	return orders
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestIQRConfig_Validate(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		config := &IQRConfig{}
		assert.ErrorIs(t, config.Validate(), ErrIQRConfigMissingAPIKey)
	})

	t.Run("fills defaults", func(t *testing.T) {
		config := &IQRConfig{APIKey: "key"}
		require.NoError(t, config.Validate())
		assert.Equal(t, IQRDefaultAuthURL, config.AuthURL)
		assert.Equal(t, IQRDefaultAPIBaseURL, config.APIBaseURL)
		assert.Equal(t, 25, config.PageSize)
		assert.Equal(t, 3000, config.MaxPage)
		assert.Equal(t, 50, config.MaxEmptyPages)
		assert.Equal(t, 500, config.SessionRefreshPages)
		assert.Equal(t, 54*time.Minute, config.SessionTTL())
	})

	t.Run("negative paging", func(t *testing.T) {
		config := &IQRConfig{APIKey: "key", PageSize: -1}
		assert.ErrorIs(t, config.Validate(), ErrIQRConfigInvalidPaging)
	})
}

// ---------------------------------------------------------------------------
// Session Tests
// ---------------------------------------------------------------------------

func TestIQRSession_ConcurrentAuthenticationCollapses(t *testing.T) {
	fake := newFakeIQR()
	fake.sessionDelay = 50 * time.Millisecond
	client := newTestIQRClient(t, fake, nil)

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = client.Session().Token(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fake.sessions.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-1", tokens[i])
	}
}

func TestIQRSession_CachesUntilExpiry(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)
	session := client.Session()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, session.Authenticate(ctx))
	require.NoError(t, session.Authenticate(ctx))
	assert.Equal(t, int32(1), fake.sessions.Load())
	assert.True(t, session.IsValid())

	now = now.Add(55 * time.Minute)
	assert.False(t, session.IsValid())

	token, err := session.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, int32(2), fake.sessions.Load())
}

func TestIQRSession_InvalidateIgnoresStaleToken(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)
	session := client.Session()

	token, err := session.Token(context.Background())
	require.NoError(t, err)

	session.Invalidate("some-older-token")
	assert.True(t, session.IsValid())

	session.Invalidate(token)
	assert.False(t, session.IsValid())
}

func TestIQRSession_AuthenticationRejected(t *testing.T) {
	fake := newFakeIQR()
	fake.sessionStatus = http.StatusForbidden
	client := newTestIQRClient(t, fake, nil)

	err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformAuthFailed)
}

func TestIQRSession_EndSession(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)
	ctx := context.Background()

	// no session yet: nothing to end
	client.EndSession(ctx)
	assert.Equal(t, int32(0), fake.endSessions.Load())

	require.NoError(t, client.Authenticate(ctx))
	client.EndSession(ctx)
	assert.Equal(t, int32(1), fake.endSessions.Load())
	assert.False(t, client.Session().IsValid())
}

func TestIQRSession_EndSessionSwallowsFailure(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)
	require.NoError(t, client.Authenticate(context.Background()))

	client.config.AuthURL = "http://127.0.0.1:1"
	client.EndSession(context.Background())
	assert.False(t, client.Session().IsValid())
}

// ---------------------------------------------------------------------------
// Fetch Tests
// ---------------------------------------------------------------------------

func TestIQRClient_FetchOrders_StopsAfterEmptyPages(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1, 2)
	fake.pages[1] = salesOrders(3)
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "1", orders[0].OrderID)
	assert.Equal(t, "3", orders[2].OrderID)

	// pages 2, 3, 4 are empty; the tolerance of 3 stops the walk
	assert.Equal(t, []int{0, 1, 2, 3, 4}, fake.requestedPages)
}

func TestIQRClient_FetchOrders_EmptyCounterResets(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	fake.pages[3] = salesOrders(2)
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, fake.requestedPages)
}

func TestIQRClient_FetchOrders_SkipsFailingPage(t *testing.T) {
	fake := newFakeIQR()
	for page := 0; page < 8; page++ {
		fake.pages[page] = salesOrders(int64(page*10 + 1))
	}
	fake.failPages[5] = true
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 7)

	ids := make(map[string]bool)
	for _, o := range orders {
		ids[o.OrderID] = true
	}
	assert.False(t, ids["51"])
	assert.True(t, ids["61"])
	assert.True(t, ids["71"])
}

func TestIQRClient_FetchOrders_ErrorPagesDoNotCountAsEmpty(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	fake.failPages[1] = true
	fake.failPages[2] = true
	fake.failPages[3] = true
	fake.failPages[4] = true
	fake.pages[5] = salesOrders(2)
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestIQRClient_FetchOrders_RespectsMaxPage(t *testing.T) {
	fake := newFakeIQR()
	for page := 0; page <= 10; page++ {
		fake.pages[page] = salesOrders(int64(page + 1))
	}
	client := newTestIQRClient(t, fake, func(c *IQRConfig) { c.MaxPage = 4 })

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, fake.requestedPages)
}

func TestIQRClient_FetchOrders_NoOrders(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestIQRClient_FetchOrders_RefreshesSessionEveryNPages(t *testing.T) {
	fake := newFakeIQR()
	for page := 0; page < 7; page++ {
		fake.pages[page] = salesOrders(int64(page + 1))
	}
	client := newTestIQRClient(t, fake, func(c *IQRConfig) { c.SessionRefreshPages = 3 })

	_, err := client.FetchOrders(context.Background())
	require.NoError(t, err)

	// initial session plus refreshes at pages 3, 6 and 9
	assert.Equal(t, int32(4), fake.sessions.Load())
	assert.Equal(t, "token-1", fake.tokensSeen[0])
	assert.Equal(t, "token-2", fake.tokensSeen[3])
	assert.Equal(t, "token-3", fake.tokensSeen[6])
}

func TestIQRClient_FetchOrders_ReauthenticatesOn401(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	fake.unauthorized = 1
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int32(2), fake.sessions.Load())
	assert.Equal(t, "token-1", fake.tokensSeen[0])
	assert.Equal(t, "token-2", fake.tokensSeen[1])
}

func TestIQRClient_FetchOrders_PersistentUnauthorizedAborts(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	fake.alwaysUnauthorized = true
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.Error(t, err)
	assert.Nil(t, orders)
	assert.ErrorIs(t, err, integration.ErrPlatformAuthFailed)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	// exactly one replay, never an unbounded loop
	assert.Len(t, fake.requestedPages, 2)
	assert.Equal(t, int32(2), fake.sessions.Load())
}

func TestIQRClient_FetchOrders_AuthFailureAborts(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	fake.sessionStatus = http.StatusUnauthorized
	client := newTestIQRClient(t, fake, nil)

	_, err := client.FetchOrders(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformAuthFailed)
	assert.Empty(t, fake.requestedPages)
}

func TestIQRClient_FetchOrders_ContextCancelled(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = salesOrders(1)
	client := newTestIQRClient(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchOrders(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIQRClient_FetchOrders_NormalizesOrders(t *testing.T) {
	fake := newFakeIQR()
	fake.pages[0] = []IQRSalesOrder{{
		SO:               38791,
		Status:           " Open ",
		ClientID:         "LUISTORRES",
		ShipToAddress1:   "1 Main St",
		ShipToAddress3:   "Suite 9",
		ShipToCity:       "Austin",
		ShipToState:      "TX",
		ShipToPostalCode: "78701",
		SaleDate:         "2026-01-05T10:00:00",
		SODetails: []IQRSalesOrderLine{
			{Item: "SKU-1", Description: "  ", Quantity: decimal.NewFromInt(2)},
		},
	}}
	client := newTestIQRClient(t, fake, nil)

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, "38791", order.OrderNumber)
	assert.Equal(t, "Open", order.Status)
	assert.Equal(t, "LUISTORRES", order.CustomerName)
	assert.Equal(t, "Suite 9", order.ShippingAddress.Street2)
	assert.Empty(t, order.ShippingAddress.Country)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "SKU-1", order.LineItems[0].Name)
	assert.Equal(t, 2, order.LineItems[0].Quantity)
}

// ---------------------------------------------------------------------------
// Tracking Tests
// ---------------------------------------------------------------------------

func TestIQRClient_UpdateOrderTracking(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)

	err := client.UpdateOrderTracking(context.Background(), integration.TrackingUpdate{
		OrderID:        "38791",
		TrackingNumber: "1Z999",
		Carrier:        "ups",
		ShipDate:       "2026-01-06",
	})
	require.NoError(t, err)

	require.Len(t, fake.trackingBodies, 1)
	require.Len(t, fake.trackingBodies[0].SOs, 1)
	fields := fake.trackingBodies[0].SOs[0]
	assert.Equal(t, "38791", fields.SOID)
	assert.Equal(t, "1Z999", fields.UserDefined1)
	assert.Equal(t, "ups", fields.UserDefined2)
	assert.Empty(t, fields.UserDefined3)
	assert.Equal(t, "2026-01-06", fields.UserDefined4)
}

func TestIQRClient_UpdateOrderTracking_InvalidUpdate(t *testing.T) {
	fake := newFakeIQR()
	client := newTestIQRClient(t, fake, nil)

	err := client.UpdateOrderTracking(context.Background(), integration.TrackingUpdate{TrackingNumber: "1Z"})
	assert.ErrorIs(t, err, integration.ErrInvalidTrackingUpdate)
	assert.Empty(t, fake.trackingBodies)
	assert.Equal(t, int32(0), fake.sessions.Load())
}

func TestIQRTrackingFields_OmitsEmptyMethod(t *testing.T) {
	payload, err := json.Marshal(newIQRTrackingRequest(integration.TrackingUpdate{OrderID: "1"}))
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "userdefined3")
	assert.Contains(t, string(payload), `"sos":[{"soid":"1"`)
}
