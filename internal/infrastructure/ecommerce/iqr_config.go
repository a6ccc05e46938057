package ecommerce

import (
	"errors"
	"time"
)

const (
	// IQRDefaultAuthURL is the IQ Reseller sign-in host
	IQRDefaultAuthURL = "https://signin.iqreseller.com"
	// IQRDefaultAPIBaseURL is the IQ Reseller web API host
	IQRDefaultAPIBaseURL = "https://api.iqreseller.com"
)

// Errors for IQR configuration
var (
	ErrIQRConfigMissingAPIKey = errors.New("iqr: API key is required")
	ErrIQRConfigInvalidPaging = errors.New("iqr: invalid paging configuration")
)

// IQRConfig holds configuration for the IQ Reseller API client
type IQRConfig struct {
	// APIKey is exchanged for a session token
	APIKey string
	// AuthURL hosts the session endpoint
	AuthURL string
	// APIBaseURL hosts the web API
	APIBaseURL string
	// TimeoutSeconds is the per-request HTTP timeout
	TimeoutSeconds int

	// PageSize is the listing page size. Default: 25
	PageSize int
	// MaxPage is the last page index requested. Default: 3000
	MaxPage int
	// MaxEmptyPages stops the walk after this many consecutive empty pages. Default: 50
	MaxEmptyPages int
	// SessionRefreshPages forces a fresh session every N pages. Default: 500
	SessionRefreshPages int

	// SessionLifetime is the server-side session lifetime. Default: 60m
	SessionLifetime time.Duration
	// SessionTTLFactor is the share of SessionLifetime a cached token is trusted. Default: 0.9
	SessionTTLFactor float64
}

// NewIQRConfig creates a new IQR configuration with defaults
func NewIQRConfig(apiKey string) *IQRConfig {
	return &IQRConfig{
		APIKey:              apiKey,
		AuthURL:             IQRDefaultAuthURL,
		APIBaseURL:          IQRDefaultAPIBaseURL,
		TimeoutSeconds:      30,
		PageSize:            25,
		MaxPage:             3000,
		MaxEmptyPages:       50,
		SessionRefreshPages: 500,
		SessionLifetime:     60 * time.Minute,
		SessionTTLFactor:    0.9,
	}
}

// Validate validates the configuration and fills zero values with defaults
func (c *IQRConfig) Validate() error {
	if c.APIKey == "" {
		return ErrIQRConfigMissingAPIKey
	}
	if c.AuthURL == "" {
		c.AuthURL = IQRDefaultAuthURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = IQRDefaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.PageSize == 0 {
		c.PageSize = 25
	}
	if c.MaxPage == 0 {
		c.MaxPage = 3000
	}
	if c.MaxEmptyPages == 0 {
		c.MaxEmptyPages = 50
	}
	if c.SessionRefreshPages == 0 {
		c.SessionRefreshPages = 500
	}
	if c.PageSize < 0 || c.MaxPage < 0 || c.MaxEmptyPages < 0 || c.SessionRefreshPages < 0 {
		return ErrIQRConfigInvalidPaging
	}
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = 60 * time.Minute
	}
	if c.SessionTTLFactor <= 0 || c.SessionTTLFactor > 1 {
		c.SessionTTLFactor = 0.9
	}
	return nil
}

// SessionTTL is how long a freshly issued token is trusted locally
func (c *IQRConfig) SessionTTL() time.Duration {
	return time.Duration(float64(c.SessionLifetime) * c.SessionTTLFactor)
}
