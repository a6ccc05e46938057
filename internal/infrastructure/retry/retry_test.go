package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRetryer records requested sleeps instead of sleeping
func newTestRetryer(cfg Config, random float64) (*Retryer, *[]time.Duration) {
	r := New(cfg, zap.NewNop())
	var slept []time.Duration
	r.random = func() float64 { return random }
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"Default config", DefaultConfig(), false},
		{"Zero retries", Config{MaxRetries: 0, InitialDelay: time.Second, MaxDelay: time.Second}, false},
		{"Negative retries", Config{MaxRetries: -1, InitialDelay: time.Second, MaxDelay: time.Second}, true},
		{"Max below initial", Config{MaxRetries: 1, InitialDelay: time.Second, MaxDelay: time.Millisecond}, true},
		{"Jitter above one", Config{MaxRetries: 1, InitialDelay: time.Second, MaxDelay: time.Second, JitterFraction: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_InvalidConfigFallsBackToDefaults(t *testing.T) {
	r := New(Config{MaxRetries: -5}, nil)
	assert.Equal(t, DefaultConfig(), r.Config())
}

func TestRetryer_Backoff(t *testing.T) {
	r := New(DefaultConfig(), zap.NewNop())

	assert.Equal(t, time.Second, r.Backoff(0))
	assert.Equal(t, 2*time.Second, r.Backoff(1))
	assert.Equal(t, 4*time.Second, r.Backoff(2))
	assert.Equal(t, 8*time.Second, r.Backoff(3))
	assert.Equal(t, 10*time.Second, r.Backoff(4), "capped at max delay")
	assert.Equal(t, 10*time.Second, r.Backoff(62), "no overflow on large attempts")
}

func TestRetryer_DelayJitterBound(t *testing.T) {
	r, _ := newTestRetryer(DefaultConfig(), 0.999)
	for attempt := 0; attempt < 6; attempt++ {
		base := r.Backoff(attempt)
		d := r.Delay(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+time.Duration(0.3*float64(base)))
	}

	r.random = func() float64 { return 0 }
	assert.Equal(t, time.Second, r.Delay(0))
}

func TestRetryer_Run(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		r, slept := newTestRetryer(DefaultConfig(), 0)
		calls := 0
		err := r.Run(context.Background(), "op", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
	})

	t.Run("returns last error after exhausting retries", func(t *testing.T) {
		r, slept := newTestRetryer(DefaultConfig(), 0)
		calls := 0
		err := r.Run(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return errors.New("attempt failed")
		})
		require.Error(t, err)
		assert.Equal(t, "attempt failed", err.Error())
		assert.Equal(t, 4, calls, "first attempt plus three retries")
		assert.Len(t, *slept, 3)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		r, slept := newTestRetryer(DefaultConfig(), 0)
		sentinel := errors.New("bad request")
		calls := 0
		err := r.Run(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return Permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *slept)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		r, _ := newTestRetryer(DefaultConfig(), 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := r.Run(ctx, "op", func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestDo_ReturnsValue(t *testing.T) {
	r, _ := newTestRetryer(Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, 0)
	calls := 0
	v, err := Do(context.Background(), r, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("first")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
