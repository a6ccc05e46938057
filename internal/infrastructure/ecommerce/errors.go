package ecommerce

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/erp/connector/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from an upstream API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxErrorBodySize bounds how much of an error body is kept for messages
const maxErrorBodySize = 512

// APIError is a non-2xx response from an upstream API
type APIError struct {
	Platform   integration.PlatformCode
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements error
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error: %d %s", e.Platform.DisplayName(), e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

// Unwrap maps the status code onto the integration sentinel errors
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return integration.ErrPlatformAuthFailed
	case e.StatusCode == http.StatusTooManyRequests:
		return integration.ErrPlatformRateLimited
	case e.StatusCode == http.StatusNotFound:
		return integration.ErrOrderSyncOrderNotFound
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= 500:
		return integration.ErrPlatformUnavailable
	default:
		return integration.ErrPlatformRequestFailed
	}
}

// IsRetryable returns true for timeouts, throttling and server errors
func (e *APIError) IsRetryable() bool {
	return integration.IsTransient(e)
}

// IsAuthFailure returns true for 401 responses
func (e *APIError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func newAPIError(platform integration.PlatformCode, method, path string, statusCode int, body []byte) *APIError {
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	return &APIError{
		Platform:   platform,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Body:       string(body),
	}
}

// AsAPIError unwraps err into an *APIError if it carries one
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// RequestObserver receives one callback per completed outbound HTTP exchange.
// statusCode is 0 when no response was received.
type RequestObserver interface {
	ObserveRequest(platform integration.PlatformCode, method string, statusCode int, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(integration.PlatformCode, string, int, time.Duration) {}
