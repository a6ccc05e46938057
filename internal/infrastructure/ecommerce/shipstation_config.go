package ecommerce

import (
	"errors"
	"time"
)

// ShipStationDefaultAPIBaseURL is the ShipStation v1 API host
const ShipStationDefaultAPIBaseURL = "https://ssapi.shipstation.com"

// Errors for ShipStation configuration
var (
	ErrShipStationConfigMissingAPIKey    = errors.New("shipstation: API key is required")
	ErrShipStationConfigMissingAPISecret = errors.New("shipstation: API secret is required")
)

// ShipStationConfig holds configuration for the ShipStation API client
type ShipStationConfig struct {
	APIKey     string
	APISecret  string
	APIBaseURL string
	// TimeoutSeconds is the per-request HTTP timeout
	TimeoutSeconds int
	// RequestsPerMinute throttles outbound calls client-side. Default: 40
	RequestsPerMinute int
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After. Default: 60s
	DefaultRetryAfter time.Duration
	// ShipmentPageSize is the page size for shipment listings. Default: 100
	ShipmentPageSize int
}

// NewShipStationConfig creates a new ShipStation configuration with defaults
func NewShipStationConfig(apiKey, apiSecret string) *ShipStationConfig {
	return &ShipStationConfig{
		APIKey:            apiKey,
		APISecret:         apiSecret,
		APIBaseURL:        ShipStationDefaultAPIBaseURL,
		TimeoutSeconds:    30,
		RequestsPerMinute: 40,
		DefaultRetryAfter: 60 * time.Second,
		ShipmentPageSize:  100,
	}
}

// Validate validates the configuration and fills zero values with defaults
func (c *ShipStationConfig) Validate() error {
	if c.APIKey == "" {
		return ErrShipStationConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrShipStationConfigMissingAPISecret
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ShipStationDefaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 40
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = 60 * time.Second
	}
	if c.ShipmentPageSize <= 0 || c.ShipmentPageSize > 500 {
		c.ShipmentPageSize = 100
	}
	return nil
}
