// Package dispatch delivers items in sequential batches with bounded
// concurrency inside each batch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/erp/connector/internal/infrastructure/retry"
)

// ErrInvalidConfig is returned when the dispatcher configuration is invalid
var ErrInvalidConfig = errors.New("dispatch: invalid configuration")

// Config holds batching settings
type Config struct {
	// BatchSize is the number of items per batch. Default: 50
	BatchSize int
	// Concurrency is the maximum number of in-flight deliveries within a batch. Default: 5
	Concurrency int
	// BatchDelay is the pause between batches, skipped after the last one. Default: 500ms
	BatchDelay time.Duration
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:   50,
		Concurrency: 5,
		BatchDelay:  500 * time.Millisecond,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("%w: batch delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Outcome is the delivery result of a single item
type Outcome[T any] struct {
	Item  T
	Index int
	Err   error
}

// Report collects every outcome of a dispatch, in input order
type Report[T any] struct {
	Outcomes []Outcome[T]
	// BatchSizes has one entry per batch issued
	BatchSizes []int
}

// Succeeded returns the number of items delivered without error
func (r Report[T]) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of items whose delivery returned an error
func (r Report[T]) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Dispatcher partitions work into batches
type Dispatcher struct {
	config Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher
func New(cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		config: cfg,
		logger: logger,
		sleep:  retry.Sleep,
	}, nil
}

// Config returns the dispatcher configuration
func (d *Dispatcher) Config() Config {
	return d.config
}

// Dispatch delivers every item. Batches run strictly one after another; inside a
// batch at most Concurrency deliveries are in flight. A failed or panicking
// delivery never cancels its siblings or later batches. Once ctx is done, the
// remaining items are recorded with the context error.
func Dispatch[T any](ctx context.Context, d *Dispatcher, items []T, deliver func(ctx context.Context, item T) error) Report[T] {
	report := Report[T]{
		Outcomes:   make([]Outcome[T], len(items)),
		BatchSizes: []int{},
	}
	if len(items) == 0 {
		return report
	}

	batchSize := d.config.BatchSize
	totalBatches := (len(items) + batchSize - 1) / batchSize

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batchNum := start/batchSize + 1
		report.BatchSizes = append(report.BatchSizes, end-start)

		runBatch(ctx, d, items, start, end, deliver, report.Outcomes)

		d.logger.Debug("Batch dispatched",
			zap.Int("batch", batchNum),
			zap.Int("total_batches", totalBatches),
			zap.Int("size", end-start),
		)

		if end < len(items) && d.config.BatchDelay > 0 {
			// a cancelled wait leaves the remaining batches to fail fast on Acquire
			_ = d.sleep(ctx, d.config.BatchDelay)
		}
	}

	return report
}

func runBatch[T any](ctx context.Context, d *Dispatcher, items []T, start, end int, deliver func(context.Context, T) error, out []Outcome[T]) {
	sem := semaphore.NewWeighted(int64(d.config.Concurrency))
	var wg sync.WaitGroup

	for i := start; i < end; i++ {
		out[i] = Outcome[T]{Item: items[i], Index: i}
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			out[i].Err = safeDeliver(ctx, items[i], deliver)
		}(i)
	}

	wg.Wait()
}

func safeDeliver[T any](ctx context.Context, item T, deliver func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: delivery panicked: %v", r)
		}
	}()
	return deliver(ctx, item)
}
