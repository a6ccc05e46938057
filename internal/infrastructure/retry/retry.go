// Package retry wraps outbound calls with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("retry: invalid configuration")

// Config holds backoff settings
type Config struct {
	// MaxRetries is the number of retries after the first attempt. Default: 3
	MaxRetries int
	// InitialDelay is the delay before the first retry. Default: 1s
	InitialDelay time.Duration
	// MaxDelay caps the exponential delay before jitter. Default: 10s
	MaxDelay time.Duration
	// JitterFraction is the upper bound of random jitter as a fraction of the delay. Default: 0.3
	JitterFraction float64
}

// DefaultConfig returns the default backoff configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.3,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.InitialDelay < 0 || c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("%w: need 0 <= initial delay <= max delay", ErrInvalidConfig)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("%w: jitter fraction must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

// permanentError stops the retry loop immediately
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retryer runs operations with exponential backoff
type Retryer struct {
	config Config
	logger *zap.Logger

	// test seams
	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Retryer. An invalid config falls back to DefaultConfig.
func New(cfg Config, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("Invalid retry config, using defaults", zap.Error(err))
		cfg = DefaultConfig()
	}
	return &Retryer{
		config: cfg,
		logger: logger,
		random: rand.Float64,
		sleep:  sleepContext,
	}
}

// Config returns the retryer's configuration
func (r *Retryer) Config() Config {
	return r.config
}

// Backoff returns min(initial * 2^attempt, max) for a zero-based attempt, without jitter.
func (r *Retryer) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if r.config.InitialDelay <= 0 {
		return 0
	}
	delay := r.config.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= r.config.MaxDelay || delay <= 0 {
			return r.config.MaxDelay
		}
	}
	return min(delay, r.config.MaxDelay)
}

// Delay returns Backoff(attempt) plus up to JitterFraction of it at random.
func (r *Retryer) Delay(attempt int) time.Duration {
	base := r.Backoff(attempt)
	jitter := time.Duration(r.random() * r.config.JitterFraction * float64(base))
	return base + jitter
}

// Run calls fn until it succeeds, returns a Permanent error, the context ends,
// or MaxRetries retries are exhausted. The last error is returned.
func (r *Retryer) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is the value-returning form of Retryer.Run.
func Do[T any](ctx context.Context, r *Retryer, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.Delay(attempt)
		r.logger.Debug("Retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.config.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}
