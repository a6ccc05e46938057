package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/connector/internal/domain/integration"
)

const iqrSessionPath = "/api/IntegrationAPI/Session"

// IQRSession owns the single IQR session token of a client.
// Concurrent callers needing a token share one in-flight authentication.
type IQRSession struct {
	config     *IQRConfig
	httpClient *http.Client
	logger     *zap.Logger
	observer   RequestObserver
	now        func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	flight singleflight.Group
}

// NewIQRSession creates a session manager. The config must already be validated.
func NewIQRSession(config *IQRConfig, httpClient *http.Client, observer RequestObserver, logger *zap.Logger) *IQRSession {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IQRSession{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With(zap.String("platform", integration.PlatformCodeIQR.String())),
		observer:   observer,
		now:        time.Now,
	}
}

// IsValid reports whether a cached token exists and has not expired locally
func (s *IQRSession) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

func (s *IQRSession) validLocked() bool {
	return s.token != "" && s.now().Before(s.expiresAt)
}

func (s *IQRSession) current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.validLocked() {
		return s.token
	}
	return ""
}

// Token returns a valid session token, authenticating when none is cached
func (s *IQRSession) Token(ctx context.Context) (string, error) {
	if token := s.current(); token != "" {
		return token, nil
	}

	ch := s.flight.DoChan("session", func() (any, error) {
		// another flight may have finished between the check and the join
		if token := s.current(); token != "" {
			return token, nil
		}
		return s.create(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Authenticate ensures a valid session exists
func (s *IQRSession) Authenticate(ctx context.Context) error {
	_, err := s.Token(ctx)
	return err
}

// Invalidate drops the cached token if it is still the given one.
// A token already replaced by a concurrent re-authentication is left alone.
func (s *IQRSession) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || s.token == token {
		s.token = ""
		s.expiresAt = time.Time{}
	}
}

// Refresh discards the current token and authenticates again
func (s *IQRSession) Refresh(ctx context.Context) error {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	s.Invalidate(token)
	return s.Authenticate(ctx)
}

// EndSession invalidates the token server-side and clears local state.
// Failures are logged, never returned.
func (s *IQRSession) EndSession(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if token == "" {
		return
	}

	url := strings.TrimRight(s.config.AuthURL, "/") + iqrSessionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		s.logger.Warn("Failed to build end-session request", zap.Error(err))
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.observer.ObserveRequest(integration.PlatformCodeIQR, http.MethodDelete, 0, time.Since(started))
		s.logger.Warn("Failed to end IQR session", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	s.observer.ObserveRequest(integration.PlatformCodeIQR, http.MethodDelete, resp.StatusCode, time.Since(started))

	if resp.StatusCode >= 400 {
		s.logger.Warn("IQR end-session returned an error status", zap.Int("status", resp.StatusCode))
		return
	}
	s.logger.Debug("IQR session ended")
}

// create performs the session exchange and caches the result
func (s *IQRSession) create(ctx context.Context) (string, error) {
	payload, err := json.Marshal(IQRSessionRequest{APIToken: s.config.APIKey})
	if err != nil {
		return "", fmt.Errorf("iqr: failed to encode session request: %w", err)
	}

	url := strings.TrimRight(s.config.AuthURL, "/") + iqrSessionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("iqr: failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.observer.ObserveRequest(integration.PlatformCodeIQR, http.MethodPost, 0, time.Since(started))
		return "", fmt.Errorf("%w: %w: %v", integration.ErrPlatformAuthFailed, integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()
	s.observer.ObserveRequest(integration.PlatformCodeIQR, http.MethodPost, resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("iqr: failed to read session response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(integration.PlatformCodeIQR, http.MethodPost, iqrSessionPath, resp.StatusCode, body)
		return "", fmt.Errorf("%w: %w", integration.ErrPlatformAuthFailed, apiErr)
	}

	var session IQRSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("%w: %w: %v", integration.ErrPlatformAuthFailed, integration.ErrPlatformInvalidResponse, err)
	}
	if session.Data == "" {
		return "", fmt.Errorf("%w: empty session token", integration.ErrPlatformAuthFailed)
	}

	s.mu.Lock()
	s.token = session.Data
	s.expiresAt = s.now().Add(s.config.SessionTTL())
	s.mu.Unlock()

	s.logger.Info("IQR session established", zap.Duration("ttl", s.config.SessionTTL()))
	return session.Data, nil
}
