package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/integration"
)

// OrderSyncFunc runs one order sync with default options
type OrderSyncFunc func(ctx context.Context) error

// ShipmentPollFunc writes back tracking for shipments created since the given time
type ShipmentPollFunc func(ctx context.Context, since time.Time) error

// NewOrderSyncScheduler runs sync once at start and then every interval while
// enabled returns true. A tick that collides with a running sync is skipped.
func NewOrderSyncScheduler(interval time.Duration, enabled func() bool, sync OrderSyncFunc, logger *zap.Logger) (*Scheduler, error) {
	if sync == nil {
		return nil, fmt.Errorf("%w: order sync func is required", ErrInvalidConfig)
	}
	return New(Config{
		Name:       "order-sync",
		Interval:   interval,
		RunOnStart: true,
		Enabled:    enabled,
		Skippable: func(err error) bool {
			return errors.Is(err, integration.ErrSyncAlreadyInProgress)
		},
	}, Job(sync), logger)
}

// NewShipmentPollScheduler polls shipments every interval. Each poll starts
// where the previous successful one started; the first poll passes the zero
// time so the poller applies its own lookback.
func NewShipmentPollScheduler(interval time.Duration, poll ShipmentPollFunc, logger *zap.Logger) (*Scheduler, error) {
	if poll == nil {
		return nil, fmt.Errorf("%w: shipment poll func is required", ErrInvalidConfig)
	}

	// only the run loop goroutine touches since
	var since time.Time
	job := func(ctx context.Context) error {
		startedAt := time.Now().UTC()
		if err := poll(ctx, since); err != nil {
			return err
		}
		since = startedAt
		return nil
	}

	return New(Config{
		Name:     "shipment-poll",
		Interval: interval,
	}, job, logger)
}
