package integration

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/connector/internal/domain/integration"
)

// Mock implementations

type mockSourceERP struct {
	mock.Mock
}

func (m *mockSourceERP) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSourceERP) EndSession(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockSourceERP) FetchOrders(ctx context.Context) ([]integration.SourceOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SourceOrder), args.Error(1)
}

func (m *mockSourceERP) UpdateOrderTracking(ctx context.Context, update integration.TrackingUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

type mockDestination struct {
	mock.Mock
}

func (m *mockDestination) CreateOrder(ctx context.Context, order *integration.DestinationOrder) (*integration.CreatedOrder, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CreatedOrder), args.Error(1)
}

func (m *mockDestination) ListStores(ctx context.Context) ([]integration.Store, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Store), args.Error(1)
}

func (m *mockDestination) GetOrder(ctx context.Context, orderID int64) (*integration.DestinationOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.DestinationOrder), args.Error(1)
}

func (m *mockDestination) ListShipments(ctx context.Context, query integration.ShipmentQuery) ([]integration.Shipment, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Shipment), args.Error(1)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// recordingObserver collects SyncObserver callbacks
type recordingObserver struct {
	mu         sync.Mutex
	runs       []bool
	deliveries map[bool]int
	webhooks   []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{deliveries: map[bool]int{}}
}

func (o *recordingObserver) ObserveSyncRun(success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, success)
}

func (o *recordingObserver) ObserveOrderDelivery(success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliveries[success]++
}

func (o *recordingObserver) ObserveWebhook(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.webhooks = append(o.webhooks, result)
}
