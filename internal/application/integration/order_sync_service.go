package integration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/infrastructure/dispatch"
	"github.com/erp/connector/internal/infrastructure/retry"
	"github.com/erp/connector/internal/infrastructure/telemetry"
)

// SyncObserver receives run-level outcomes, typically for metrics
type SyncObserver interface {
	ObserveSyncRun(success bool, duration time.Duration)
	ObserveOrderDelivery(success bool)
	ObserveWebhook(result string)
}

type nopSyncObserver struct{}

func (nopSyncObserver) ObserveSyncRun(bool, time.Duration) {}
func (nopSyncObserver) ObserveOrderDelivery(bool)          {}
func (nopSyncObserver) ObserveWebhook(string)              {}

// OrderSyncConfig holds the business rules of a sync run
type OrderSyncConfig struct {
	// StoreName is the destination store orders are routed to
	StoreName string
	// Channel is the source channel tag orders must carry; empty disables the filter
	Channel string
	// Statuses is the default status allow-list
	Statuses []string
	// DaysBack is the rolling sale-date window
	DaysBack int
}

// DefaultOrderSyncConfig returns the default business rules
func DefaultOrderSyncConfig() OrderSyncConfig {
	return OrderSyncConfig{
		StoreName: "DPC - Agent Quickbooks",
		Channel:   "DPC - Agent Quickbooks",
		Statuses:  []string{"Open", "Partial"},
		DaysBack:  1,
	}
}

// SyncOptions are per-run overrides supplied by a manual trigger
type SyncOptions struct {
	// From replaces the rolling window start when set
	From time.Time
	// To bounds the sale date from above when set
	To time.Time
	// OrderStatus replaces the status allow-list when set
	OrderStatus string
}

// OrderSyncService runs the fetch, filter, transform and dispatch pipeline.
// At most one run is in progress at a time.
type OrderSyncService struct {
	source      integration.SourceERP
	destination integration.Destination
	transformer *OrderTransformer
	dispatcher  *dispatch.Dispatcher
	retryer     *retry.Retryer
	activity    *ActivityTracker
	observer    SyncObserver
	config      OrderSyncConfig
	logger      *zap.Logger
	now         func() time.Time

	running atomic.Bool
	stage   atomic.Value
}

// NewOrderSyncService creates a new OrderSyncService
func NewOrderSyncService(
	source integration.SourceERP,
	destination integration.Destination,
	transformer *OrderTransformer,
	dispatcher *dispatch.Dispatcher,
	retryer *retry.Retryer,
	activity *ActivityTracker,
	observer SyncObserver,
	config OrderSyncConfig,
	logger *zap.Logger,
) *OrderSyncService {
	if observer == nil {
		observer = nopSyncObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.Statuses) == 0 {
		config.Statuses = DefaultOrderSyncConfig().Statuses
	}
	if config.DaysBack <= 0 {
		config.DaysBack = DefaultOrderSyncConfig().DaysBack
	}

	s := &OrderSyncService{
		source:      source,
		destination: destination,
		transformer: transformer,
		dispatcher:  dispatcher,
		retryer:     retryer,
		activity:    activity,
		observer:    observer,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
	s.stage.Store(integration.SyncStageIdle)
	return s
}

// Stage returns the current step of the state machine
func (s *OrderSyncService) Stage() integration.SyncStage {
	return s.stage.Load().(integration.SyncStage)
}

// IsRunning reports whether a run is in progress
func (s *OrderSyncService) IsRunning() bool {
	return s.running.Load()
}

func (s *OrderSyncService) setStage(stage integration.SyncStage) {
	s.stage.Store(stage)
}

// Run performs one sync. Per-order delivery failures are reported in the
// result and do not fail the run; an error is returned only when the run
// itself could not complete. The source session is always ended.
func (s *OrderSyncService) Run(ctx context.Context, opts SyncOptions) (*integration.SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, integration.ErrSyncAlreadyInProgress
	}
	defer s.running.Store(false)
	defer s.setStage(integration.SyncStageIdle)

	result := integration.NewSyncResult()
	started := time.Now()

	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, result.RunID.String()),
	)
	defer span.End()

	log := s.logger.With(zap.String("run_id", result.RunID.String()))
	log.Info("Order sync started",
		zap.Time("from", opts.From),
		zap.Time("to", opts.To),
		zap.String("order_status", opts.OrderStatus),
	)

	runErr := s.execute(ctx, opts, result, log)

	s.setStage(integration.SyncStageEndingSession)
	s.source.EndSession(context.WithoutCancel(ctx))

	s.setStage(integration.SyncStageCompleting)
	result.Duration = time.Since(started)

	if runErr != nil {
		result.Success = false
		telemetry.RecordError(span, runErr)
		log.Error("Order sync failed", zap.Error(runErr), zap.Duration("duration", result.Duration))

		s.activity.RecordError(runErr.Error())
		s.activity.RecordSync(SyncActivity{
			Success:         false,
			OrdersProcessed: result.OrdersProcessed,
			OrdersFailed:    result.OrdersFailed,
			Duration:        result.Duration,
			Message:         runErr.Error(),
		})
		s.observer.ObserveSyncRun(false, result.Duration)
		return result, runErr
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOrdersFailed, result.OrdersFailed)
	telemetry.SetOK(span)
	log.Info("Order sync completed",
		zap.Int("processed", result.OrdersProcessed),
		zap.Int("failed", result.OrdersFailed),
		zap.Duration("duration", result.Duration),
	)

	s.activity.RecordSync(SyncActivity{
		Success:         true,
		OrdersProcessed: result.OrdersProcessed,
		OrdersFailed:    result.OrdersFailed,
		Duration:        result.Duration,
		Message:         result.Message(),
	})
	s.observer.ObserveSyncRun(true, result.Duration)
	return result, nil
}

func (s *OrderSyncService) execute(ctx context.Context, opts SyncOptions, result *integration.SyncResult, log *zap.Logger) error {
	s.setStage(integration.SyncStageResolvingStore)
	storeID := s.resolveStore(ctx, log)

	s.setStage(integration.SyncStageFetching)
	orders, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}
	log.Info("Orders fetched from source", zap.Int("count", len(orders)))

	s.setStage(integration.SyncStageFiltering)
	eligible := s.filter(ctx, orders, opts, log)
	if len(eligible) == 0 {
		return nil
	}

	s.setStage(integration.SyncStageTransforming)
	outbound := make([]*integration.DestinationOrder, 0, len(eligible))
	for _, order := range eligible {
		outbound = append(outbound, s.transformer.Transform(order, storeID))
	}

	s.setStage(integration.SyncStageDispatching)
	s.dispatch(ctx, outbound, result, log)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// resolveStore looks up the configured destination store. A failed lookup is
// logged and the run continues without store routing.
func (s *OrderSyncService) resolveStore(ctx context.Context, log *zap.Logger) *int64 {
	if s.config.StoreName == "" {
		return nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "resolve_store")
	defer span.End()

	stores, err := s.destination.ListStores(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Failed to list destination stores, continuing without store ID", zap.Error(err))
		return nil
	}

	store, err := integration.FindStoreByName(stores, s.config.StoreName)
	if err != nil {
		log.Warn("Destination store not found, continuing without store ID",
			zap.String("store_name", s.config.StoreName),
		)
		return nil
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrStoreID, store.StoreID)
	log.Info("Using destination store",
		zap.String("store_name", store.StoreName),
		zap.Int64("store_id", store.StoreID),
	)
	id := store.StoreID
	return &id
}

func (s *OrderSyncService) fetch(ctx context.Context) ([]integration.SourceOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "fetch")
	defer span.End()

	orders, err := s.source.FetchOrders(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrOrdersFetched, len(orders))
	return orders, nil
}

// Criteria returns the filter criteria a run with opts would apply at now
func (s *OrderSyncService) Criteria(opts SyncOptions, now time.Time) FilterCriteria {
	criteria := FilterCriteria{
		Statuses: s.config.Statuses,
		From:     DaysBackCutoff(now, s.config.DaysBack),
		To:       opts.To,
		Channel:  s.config.Channel,
	}
	if opts.OrderStatus != "" {
		criteria.Statuses = []string{opts.OrderStatus}
	}
	if !opts.From.IsZero() {
		criteria.From = opts.From
	}
	return criteria
}

func (s *OrderSyncService) filter(ctx context.Context, orders []integration.SourceOrder, opts SyncOptions, log *zap.Logger) []integration.SourceOrder {
	_, span := telemetry.StartServiceSpan(ctx, "order_sync", "filter")
	defer span.End()

	criteria := s.Criteria(opts, s.now())
	eligible := orders
	for _, stage := range criteria.Pipeline() {
		eligible = ApplyFilter(eligible, stage.Predicate)
		log.Info("Filter applied", zap.String("filter", stage.Name), zap.Int("remaining", len(eligible)))
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrOrdersEligible, len(eligible))
	return eligible
}

func (s *OrderSyncService) dispatch(ctx context.Context, orders []*integration.DestinationOrder, result *integration.SyncResult, log *zap.Logger) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "dispatch")
	defer span.End()

	report := dispatch.Dispatch(ctx, s.dispatcher, orders, func(ctx context.Context, order *integration.DestinationOrder) error {
		return s.retryer.Run(ctx, "create_order", func(ctx context.Context) error {
			_, err := s.destination.CreateOrder(ctx, order)
			if err != nil && !integration.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		})
	})

	for _, outcome := range report.Outcomes {
		order := outcome.Item
		if outcome.Err != nil {
			result.RecordFailure(order.OrderNumber, outcome.Err)
			s.observer.ObserveOrderDelivery(false)
			log.Error("Failed to sync order",
				zap.String("order_number", order.OrderNumber),
				zap.String("order_key", order.OrderKey),
				zap.Error(outcome.Err),
			)
			continue
		}
		result.RecordSuccess()
		s.observer.ObserveOrderDelivery(true)
		log.Debug("Order synced",
			zap.String("order_number", order.OrderNumber),
			zap.String("order_key", order.OrderKey),
		)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrdersEligible, len(orders),
		telemetry.SpanAttrOrdersFailed, report.Failed(),
	)
	if failed := report.Failed(); failed > 0 {
		telemetry.AddEvent(span, "partial_failure", "failed", failed)
	}
}

// IsAlreadyRunning reports whether err means a run was rejected for overlap
func IsAlreadyRunning(err error) bool {
	return errors.Is(err, integration.ErrSyncAlreadyInProgress)
}
