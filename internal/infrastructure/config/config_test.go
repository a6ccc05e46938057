package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearedVars are reset for every test so the host environment cannot leak in.
// Viper ignores empty environment values.
var clearedVars = []string{
	"PORT", "APP_PORT", "NODE_ENV", "APP_ENV",
	"LOG_LEVEL", "LOG_FORMAT",
	"IQR_API_KEY", "IQR_AUTH_URL", "IQR_API_BASE_URL",
	"SHIPSTATION_API_KEY", "SHIPSTATION_API_SECRET", "SHIPSTATION_API_BASE_URL",
	"SHIPSTATION_WEBHOOK_SECRET", "SHIPSTATION_STORE_NAME",
	"SYNC_ENABLED", "SYNC_INTERVAL_MINUTES", "SYNC_BATCH_SIZE", "SYNC_MAX_RETRIES",
	"SYNC_CONCURRENCY", "SYNC_STATUSES", "SYNC_BATCH_DELAY", "SYNC_DEFAULT_COUNTRY",
	"SYNC_RETRY_INITIAL_DELAY", "SYNC_RETRY_MAX_DELAY",
	"TRACKING_POLL_INTERVAL_MINUTES", "REDIS_ADDR",
	"TELEMETRY_ENABLED", "TELEMETRY_SAMPLING_RATIO", "METRICS_PATH",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for _, key := range clearedVars {
		t.Setenv(key, "")
	}
	t.Setenv("IQR_API_KEY", "iqr-key")
	t.Setenv("SHIPSTATION_API_KEY", "ss-key")
	t.Setenv("SHIPSTATION_API_SECRET", "ss-secret")
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when only credentials are set", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, 3000, cfg.App.Port)
		assert.Equal(t, "https://signin.iqreseller.com", cfg.IQR.AuthURL)
		assert.Equal(t, "https://api.iqreseller.com", cfg.IQR.APIBaseURL)
		assert.Equal(t, "https://ssapi.shipstation.com", cfg.ShipStation.APIBaseURL)
		assert.Equal(t, "DPC - Agent Quickbooks", cfg.ShipStation.StoreName)
		assert.Equal(t, "DPC - Agent Quickbooks", cfg.Sync.Channel)
		assert.False(t, cfg.Sync.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.Sync.Interval())
		assert.Equal(t, 50, cfg.Sync.BatchSize)
		assert.Equal(t, 5, cfg.Sync.Concurrency)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.BatchDelay)
		assert.Equal(t, 3, cfg.Sync.MaxRetries)
		assert.Equal(t, time.Second, cfg.Sync.RetryInitialDelay)
		assert.Equal(t, 10*time.Second, cfg.Sync.RetryMaxDelay)
		assert.Equal(t, []string{"Open", "Partial"}, cfg.Sync.Statuses)
		assert.Equal(t, "US", cfg.Sync.DefaultCountry)
		assert.Equal(t, 24*time.Hour, cfg.Tracking.IdempotencyTTL)
		assert.Equal(t, time.Duration(0), cfg.Tracking.PollInterval())
		assert.Equal(t, int64(64<<10), cfg.HTTP.WebhookMaxBodySize)
		assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
		assert.Equal(t, 10, cfg.HTTP.TriggerRateLimit)
		assert.Equal(t, 25, cfg.IQR.PageSize)
		assert.Equal(t, 3000, cfg.IQR.MaxPage)
		assert.Equal(t, 50, cfg.IQR.MaxEmptyPages)
		assert.Equal(t, 500, cfg.IQR.SessionRefreshPages)
		assert.Equal(t, 40, cfg.ShipStation.RequestsPerMinute)
		assert.Empty(t, cfg.Redis.Addr)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("loads values from environment variables", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "8081")
		t.Setenv("NODE_ENV", "production")
		t.Setenv("SHIPSTATION_WEBHOOK_SECRET", "whsec")
		t.Setenv("SHIPSTATION_STORE_NAME", "Test Store")
		t.Setenv("SYNC_ENABLED", "true")
		t.Setenv("SYNC_INTERVAL_MINUTES", "5")
		t.Setenv("SYNC_BATCH_SIZE", "100")
		t.Setenv("SYNC_MAX_RETRIES", "0")
		t.Setenv("SYNC_STATUSES", "Open, Partial ,Backorder")
		t.Setenv("SYNC_BATCH_DELAY", "2s")
		t.Setenv("REDIS_ADDR", "localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8081, cfg.App.Port)
		assert.Equal(t, "production", cfg.App.Env)
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "iqr-key", cfg.IQR.APIKey)
		assert.Equal(t, "ss-key", cfg.ShipStation.APIKey)
		assert.Equal(t, "ss-secret", cfg.ShipStation.APISecret)
		assert.Equal(t, "whsec", cfg.ShipStation.WebhookSecret)
		assert.Equal(t, "Test Store", cfg.ShipStation.StoreName)
		assert.True(t, cfg.Sync.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Sync.Interval())
		assert.Equal(t, 100, cfg.Sync.BatchSize)
		assert.Equal(t, 0, cfg.Sync.MaxRetries)
		assert.Equal(t, []string{"Open", "Partial", "Backorder"}, cfg.Sync.Statuses)
		assert.Equal(t, 2*time.Second, cfg.Sync.BatchDelay)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	})

	t.Run("APP_PORT and APP_ENV are accepted as aliases", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("APP_PORT", "9000")
		t.Setenv("APP_ENV", "staging")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.App.Port)
		assert.Equal(t, "staging", cfg.App.Env)
	})

	t.Run("interval zero disables the scheduler", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SYNC_INTERVAL_MINUTES", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.Sync.Interval())
	})
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing IQR key",
			env:     map[string]string{"IQR_API_KEY": ""},
			wantErr: "IQR_API_KEY",
		},
		{
			name:    "missing ShipStation key",
			env:     map[string]string{"SHIPSTATION_API_KEY": ""},
			wantErr: "SHIPSTATION_API_KEY",
		},
		{
			name:    "missing ShipStation secret",
			env:     map[string]string{"SHIPSTATION_API_SECRET": ""},
			wantErr: "SHIPSTATION_API_SECRET",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "app.port",
		},
		{
			name:    "negative interval",
			env:     map[string]string{"SYNC_INTERVAL_MINUTES": "-1"},
			wantErr: "sync.interval_minutes",
		},
		{
			name:    "batch size zero",
			env:     map[string]string{"SYNC_BATCH_SIZE": "0"},
			wantErr: "sync.batch_size",
		},
		{
			name:    "batch size too large",
			env:     map[string]string{"SYNC_BATCH_SIZE": "1001"},
			wantErr: "sync.batch_size",
		},
		{
			name:    "too many retries",
			env:     map[string]string{"SYNC_MAX_RETRIES": "11"},
			wantErr: "sync.max_retries",
		},
		{
			name:    "concurrency zero",
			env:     map[string]string{"SYNC_CONCURRENCY": "0"},
			wantErr: "sync.concurrency",
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "log.level",
		},
		{
			name:    "invalid sampling ratio",
			env:     map[string]string{"TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "telemetry.sampling_ratio",
		},
		{
			name:    "max delay below initial delay",
			env:     map[string]string{"SYNC_RETRY_INITIAL_DELAY": "5s", "SYNC_RETRY_MAX_DELAY": "1s"},
			wantErr: "sync.retry_max_delay",
		},
		{
			name:    "negative trigger rate limit",
			env:     map[string]string{"HTTP_TRIGGER_RATE_LIMIT": "-1"},
			wantErr: "http.trigger_rate_limit",
		},
		{
			name:    "metrics path without slash",
			env:     map[string]string{"METRICS_PATH": "metrics"},
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Summary(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	summary := cfg.Summary()
	assert.Equal(t, "configured", summary["iqr_api_key"])
	assert.Equal(t, "configured", summary["shipstation_api_key"])
	assert.Equal(t, "not configured", summary["webhook_secret"])
	assert.Equal(t, "not configured", summary["redis"])

	for _, value := range summary {
		assert.NotEqual(t, "iqr-key", value)
		assert.NotEqual(t, "ss-secret", value)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Open", "Partial"}, splitList([]string{"Open", "Partial"}))
	assert.Equal(t, []string{"Open", "Partial"}, splitList([]string{"Open,Partial"}))
	assert.Equal(t, []string{"Open"}, splitList([]string{" Open ,, "}))
	assert.Empty(t, splitList(nil))
}
