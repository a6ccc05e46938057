package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	IQR         IQRConfig
	ShipStation ShipStationConfig
	Sync        SyncConfig
	Tracking    TrackingConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Metrics     MetricsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string `validate:"required"`
	Port    int    `validate:"min=1,max=65535"`
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"` // debug, info, warn, error
	Format string `validate:"oneof=json console"`          // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64 `validate:"gt=0"`
	// WebhookMaxBodySize bounds the raw webhook body read for signature checks
	WebhookMaxBodySize int64 `validate:"gt=0"`
	// RequestTimeout is the outbound HTTP timeout for both platforms
	RequestTimeout time.Duration `validate:"gt=0"`
	TrustedProxies []string
	// TriggerRateLimit caps manual sync triggers per client per minute; 0 disables the limit
	TriggerRateLimit int `validate:"min=0"`
}

// IQRConfig holds the source ERP settings
type IQRConfig struct {
	APIKey              string `validate:"required"`
	AuthURL             string `validate:"required,url"`
	APIBaseURL          string `validate:"required,url"`
	PageSize            int    `validate:"min=1,max=500"`
	MaxPage             int    `validate:"min=0"`
	MaxEmptyPages       int    `validate:"min=1"`
	SessionRefreshPages int    `validate:"min=0"`
	SessionLifetime     time.Duration
	SessionTTLFactor    float64 `validate:"gt=0,lte=1"`
}

// ShipStationConfig holds the destination platform settings
type ShipStationConfig struct {
	APIKey            string `validate:"required"`
	APISecret         string `validate:"required"`
	APIBaseURL        string `validate:"required,url"`
	WebhookSecret     string
	StoreName         string
	RequestsPerMinute int `validate:"min=1"`
	DefaultRetryAfter time.Duration
	ShipmentPageSize  int `validate:"min=1,max=500"`
}

// SyncConfig holds the order sync schedule and business rules
type SyncConfig struct {
	Enabled bool
	// IntervalMinutes between scheduled runs; 0 disables the scheduler
	IntervalMinutes   int `validate:"min=0"`
	BatchSize         int `validate:"min=1,max=1000"`
	Concurrency       int `validate:"min=1"`
	BatchDelay        time.Duration
	MaxRetries        int `validate:"min=0,max=10"`
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryJitter       float64 `validate:"min=0,max=1"`
	DaysBack          int     `validate:"min=1"`
	Statuses          []string
	Channel           string
	DefaultCountry    string `validate:"len=2"`
}

// Interval returns the scheduler period
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// TrackingConfig holds shipment writeback settings
type TrackingConfig struct {
	// PollIntervalMinutes schedules shipment polling; 0 disables it
	PollIntervalMinutes int `validate:"min=0"`
	IdempotencyEnabled  bool
	IdempotencyTTL      time.Duration
}

// PollInterval returns the shipment polling period
func (t TrackingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMinutes) * time.Minute
}

// RedisConfig holds Redis connection settings. An empty Addr keeps webhook
// dedupe in memory.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 `validate:"min=0,max=1"` // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from .env, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables (IQR_API_KEY, SYNC_BATCH_SIZE, PORT, ...)
// 2. .env in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// a missing .env is fine; existing environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// hosting platforms inject PORT and NODE_ENV
	_ = v.BindEnv("app.port", "PORT", "APP_PORT")
	_ = v.BindEnv("app.env", "NODE_ENV", "APP_ENV")

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetInt("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:        v.GetInt64("http.max_body_size"),
			WebhookMaxBodySize: v.GetInt64("http.webhook_max_body_size"),
			RequestTimeout:     v.GetDuration("http.request_timeout"),
			TrustedProxies:     splitList(v.GetStringSlice("http.trusted_proxies")),
			TriggerRateLimit:   v.GetInt("http.trigger_rate_limit"),
		},
		IQR: IQRConfig{
			APIKey:              v.GetString("iqr.api_key"),
			AuthURL:             v.GetString("iqr.auth_url"),
			APIBaseURL:          v.GetString("iqr.api_base_url"),
			PageSize:            v.GetInt("iqr.page_size"),
			MaxPage:             v.GetInt("iqr.max_page"),
			MaxEmptyPages:       v.GetInt("iqr.max_empty_pages"),
			SessionRefreshPages: v.GetInt("iqr.session_refresh_pages"),
			SessionLifetime:     v.GetDuration("iqr.session_lifetime"),
			SessionTTLFactor:    v.GetFloat64("iqr.session_ttl_factor"),
		},
		ShipStation: ShipStationConfig{
			APIKey:            v.GetString("shipstation.api_key"),
			APISecret:         v.GetString("shipstation.api_secret"),
			APIBaseURL:        v.GetString("shipstation.api_base_url"),
			WebhookSecret:     v.GetString("shipstation.webhook_secret"),
			StoreName:         v.GetString("shipstation.store_name"),
			RequestsPerMinute: v.GetInt("shipstation.requests_per_minute"),
			DefaultRetryAfter: v.GetDuration("shipstation.default_retry_after"),
			ShipmentPageSize:  v.GetInt("shipstation.shipment_page_size"),
		},
		Sync: SyncConfig{
			Enabled:           v.GetBool("sync.enabled"),
			IntervalMinutes:   v.GetInt("sync.interval_minutes"),
			BatchSize:         v.GetInt("sync.batch_size"),
			Concurrency:       v.GetInt("sync.concurrency"),
			BatchDelay:        v.GetDuration("sync.batch_delay"),
			MaxRetries:        v.GetInt("sync.max_retries"),
			RetryInitialDelay: v.GetDuration("sync.retry_initial_delay"),
			RetryMaxDelay:     v.GetDuration("sync.retry_max_delay"),
			RetryJitter:       v.GetFloat64("sync.retry_jitter"),
			DaysBack:          v.GetInt("sync.days_back"),
			Statuses:          splitList(v.GetStringSlice("sync.statuses")),
			Channel:           v.GetString("sync.channel"),
			DefaultCountry:    strings.ToUpper(v.GetString("sync.default_country")),
		},
		Tracking: TrackingConfig{
			PollIntervalMinutes: v.GetInt("tracking.poll_interval_minutes"),
			IdempotencyEnabled:  v.GetBool("tracking.idempotency_enabled"),
			IdempotencyTTL:      v.GetDuration("tracking.idempotency_ttl"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults. Registering every key also lets
// AutomaticEnv resolve it from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "order-connector")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 5*time.Minute)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.max_body_size", 1<<20)
	v.SetDefault("http.webhook_max_body_size", 64<<10)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("http.trigger_rate_limit", 10)

	v.SetDefault("iqr.api_key", "")
	v.SetDefault("iqr.auth_url", "https://signin.iqreseller.com")
	v.SetDefault("iqr.api_base_url", "https://api.iqreseller.com")
	v.SetDefault("iqr.page_size", 25)
	v.SetDefault("iqr.max_page", 3000)
	v.SetDefault("iqr.max_empty_pages", 50)
	v.SetDefault("iqr.session_refresh_pages", 500)
	v.SetDefault("iqr.session_lifetime", 60*time.Minute)
	v.SetDefault("iqr.session_ttl_factor", 0.9)

	v.SetDefault("shipstation.api_key", "")
	v.SetDefault("shipstation.api_secret", "")
	v.SetDefault("shipstation.api_base_url", "https://ssapi.shipstation.com")
	v.SetDefault("shipstation.webhook_secret", "")
	v.SetDefault("shipstation.store_name", "DPC - Agent Quickbooks")
	v.SetDefault("shipstation.requests_per_minute", 40)
	v.SetDefault("shipstation.default_retry_after", 60*time.Second)
	v.SetDefault("shipstation.shipment_page_size", 100)

	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.interval_minutes", 15)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.concurrency", 5)
	v.SetDefault("sync.batch_delay", 500*time.Millisecond)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.retry_initial_delay", time.Second)
	v.SetDefault("sync.retry_max_delay", 10*time.Second)
	v.SetDefault("sync.retry_jitter", 0.3)
	v.SetDefault("sync.days_back", 1)
	v.SetDefault("sync.statuses", []string{"Open", "Partial"})
	v.SetDefault("sync.channel", "DPC - Agent Quickbooks")
	v.SetDefault("sync.default_country", "US")

	v.SetDefault("tracking.poll_interval_minutes", 0)
	v.SetDefault("tracking.idempotency_enabled", true)
	v.SetDefault("tracking.idempotency_ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "connector:webhook:")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "order-connector")
	v.SetDefault("telemetry.insecure", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// splitList accepts both list values and a single comma-separated env value
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid configuration: %s", describeFieldError(fieldErrs[0]))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(c.Sync.Statuses) == 0 {
		return fmt.Errorf("invalid configuration: sync.statuses must not be empty")
	}
	if c.Sync.RetryMaxDelay < c.Sync.RetryInitialDelay {
		return fmt.Errorf("invalid configuration: sync.retry_max_delay (%s) cannot be less than sync.retry_initial_delay (%s)",
			c.Sync.RetryMaxDelay, c.Sync.RetryInitialDelay)
	}
	if c.Sync.BatchDelay < 0 {
		return fmt.Errorf("invalid configuration: sync.batch_delay cannot be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid configuration: metrics.path must start with '/'")
	}

	return nil
}

// configKeys maps struct namespaces to their config key for error messages
var configKeys = map[string]string{
	"Config.IQR.APIKey":              "iqr.api_key (IQR_API_KEY)",
	"Config.ShipStation.APIKey":      "shipstation.api_key (SHIPSTATION_API_KEY)",
	"Config.ShipStation.APISecret":   "shipstation.api_secret (SHIPSTATION_API_SECRET)",
	"Config.App.Port":                "app.port (PORT)",
	"Config.Sync.BatchSize":          "sync.batch_size (SYNC_BATCH_SIZE)",
	"Config.Sync.MaxRetries":         "sync.max_retries (SYNC_MAX_RETRIES)",
	"Config.Sync.IntervalMinutes":    "sync.interval_minutes (SYNC_INTERVAL_MINUTES)",
	"Config.Sync.Concurrency":        "sync.concurrency (SYNC_CONCURRENCY)",
	"Config.Sync.DefaultCountry":     "sync.default_country (SYNC_DEFAULT_COUNTRY)",
	"Config.Telemetry.SamplingRatio": "telemetry.sampling_ratio (TELEMETRY_SAMPLING_RATIO)",
	"Config.Log.Level":               "log.level (LOG_LEVEL)",
	"Config.Log.Format":              "log.format (LOG_FORMAT)",
	"Config.ShipStation.APIBaseURL":  "shipstation.api_base_url (SHIPSTATION_API_BASE_URL)",
	"Config.IQR.AuthURL":             "iqr.auth_url (IQR_AUTH_URL)",
	"Config.IQR.APIBaseURL":          "iqr.api_base_url (IQR_API_BASE_URL)",
	"Config.HTTP.TriggerRateLimit":   "http.trigger_rate_limit (HTTP_TRIGGER_RATE_LIMIT)",
}

func describeFieldError(e validator.FieldError) string {
	name, ok := configKeys[e.Namespace()]
	if !ok {
		name = e.Namespace()
	}
	switch e.Tag() {
	case "required":
		return name + " is required"
	case "url":
		return name + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, e.Param(), fmt.Sprint(e.Value()))
	case "min", "gt", "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", name, e.Param(), e.Value())
	case "max", "lt", "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", name, e.Param(), e.Value())
	case "len":
		return fmt.Sprintf("%s must be %s characters", name, e.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", name, e.Tag())
	}
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Summary returns the startup summary with secrets reduced to their presence
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"env":                 c.App.Env,
		"port":                c.App.Port,
		"iqr_api_key":         configured(c.IQR.APIKey),
		"iqr_api_base_url":    c.IQR.APIBaseURL,
		"shipstation_api_key": configured(c.ShipStation.APIKey),
		"shipstation_secret":  configured(c.ShipStation.APISecret),
		"webhook_secret":      configured(c.ShipStation.WebhookSecret),
		"store_name":          c.ShipStation.StoreName,
		"sync_enabled":        c.Sync.Enabled,
		"sync_interval":       c.Sync.Interval().String(),
		"sync_batch_size":     c.Sync.BatchSize,
		"sync_concurrency":    c.Sync.Concurrency,
		"sync_max_retries":    c.Sync.MaxRetries,
		"sync_statuses":       strings.Join(c.Sync.Statuses, ","),
		"tracking_poll":       c.Tracking.PollInterval().String(),
		"redis":               configured(c.Redis.Addr),
		"telemetry_enabled":   c.Telemetry.Enabled,
		"metrics_enabled":     c.Metrics.Enabled,
	}
}

func configured(secret string) string {
	if secret == "" {
		return "not configured"
	}
	return "configured"
}
