package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	appintegration "github.com/erp/connector/internal/application/integration"
	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Mock implementations

type mockOrderSyncer struct {
	mock.Mock
}

func (m *mockOrderSyncer) Run(ctx context.Context, opts appintegration.SyncOptions) (*integration.SyncResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncResult), args.Error(1)
}

type mockShipmentPoller struct {
	mock.Mock
}

func (m *mockShipmentPoller) PollShipments(ctx context.Context, since time.Time) (*appintegration.ShipmentPollResult, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.ShipmentPollResult), args.Error(1)
}

type mockEventProcessor struct {
	mock.Mock
}

func (m *mockEventProcessor) VerifySignature(body []byte, signature string) bool {
	args := m.Called(body, signature)
	return args.Bool(0)
}

func (m *mockEventProcessor) ProcessShipmentEvent(ctx context.Context, event integration.ShipmentEvent) (*integration.WritebackResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WritebackResult), args.Error(1)
}

type mockSessionProber struct {
	mock.Mock
}

func (m *mockSessionProber) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSessionProber) EndSession(ctx context.Context) {
	m.Called(ctx)
}

type mockStoreLister struct {
	mock.Mock
}

func (m *mockStoreLister) ListStores(ctx context.Context) ([]integration.Store, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Store), args.Error(1)
}

// Helpers

func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	return router
}

func performRequest(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
