package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dontcare/internal/cache"
	apperrors "dontcare/internal/errors"
	"dontcare/internal/logger"
	"dontcare/internal/monitoring"
)

// Cache keys and timing for the shared access token. One token is shared
// by every process; refreshes are serialized through a distributed lock.
const (
	tokenKey        = "kis_api_token"
	tokenExpiresKey = "kis_api_token_expires"
	tokenLockName   = "kis_api_token"

	lockTimeout = 30 * time.Second
	// refresh 5 minutes before the upstream expiry
	tokenBuffer = 5 * time.Minute

	defaultExpiresIn = 86400 // seconds, KIS issues 24h tokens
)

// backoffWaits are the polls while another process holds the refresh lock
var backoffWaits = []time.Duration{
	2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second,
}

// TokenManager keeps a single KIS access token in the cache and refreshes
// it on demand. Safe for concurrent use across goroutines and processes.
type TokenManager struct {
	cache      cache.Cacher
	httpClient *http.Client
	baseURL    string
	appKey     string
	appSecret  string

	// serializes refreshes within this process
	mu sync.Mutex
}

// TokenInfo reports the current token state for diagnostics
type TokenInfo struct {
	HasToken       bool   `json:"has_token"`
	TokenLength    int    `json:"token_length"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	IsValid        bool   `json:"is_valid"`
	TimeToExpiry   string `json:"time_to_expiry,omitempty"`
	CacheAvailable bool   `json:"cache_available"`
}

// NewTokenManager creates a token manager for the given credentials
func NewTokenManager(c cache.Cacher, baseURL, appKey, appSecret string, timeout time.Duration) *TokenManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TokenManager{
		cache:      c,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
	}
}

// GetToken returns a valid access token, refreshing if the cached one is
// missing or inside the expiry buffer. A cache outage falls back to a
// direct token request so quote traffic keeps flowing.
func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	token, ok, err := m.cachedToken(ctx)
	if err != nil {
		logger.WithError(err).Warn("Token cache unavailable, requesting directly")
		return m.requestNewToken(ctx)
	}
	if ok {
		return token, nil
	}

	return m.refreshToken(ctx)
}

// cachedToken reads the token and its expiry; ok is true only when both
// exist and the expiry is in the future.
func (m *TokenManager) cachedToken(ctx context.Context) (string, bool, error) {
	var token string
	err := m.cache.Get(ctx, tokenKey, &token)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var expiresStr string
	err = m.cache.Get(ctx, tokenExpiresKey, &expiresStr)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	expiresAt, parseErr := time.Parse(time.RFC3339, expiresStr)
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Invalid token expiry format in cache")
		return "", false, nil
	}

	if time.Now().Before(expiresAt) {
		return token, true, nil
	}
	return "", false, nil
}

// refreshToken refreshes under the distributed lock. When another holder
// owns the lock it polls with exponential backoff for the token the
// holder is issuing, and only issues directly once the polls exhaust.
func (m *TokenManager) refreshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acquired, err := m.cache.AcquireLock(ctx, tokenLockName, lockTimeout)
	if err != nil {
		logger.WithError(err).Warn("Token lock unavailable, requesting directly")
		return m.requestNewToken(ctx)
	}

	if !acquired {
		logger.Info("Token refresh in progress elsewhere, waiting with backoff")
		for attempt, wait := range backoffWaits {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}

			token, ok, err := m.cachedToken(ctx)
			if err == nil && ok {
				logger.WithField("attempt", attempt+1).Info("Token refreshed by another process during wait")
				return token, nil
			}
		}

		logger.Warn("Backoff exhausted waiting for token refresh, requesting directly")
		return m.requestNewToken(ctx)
	}

	defer func() {
		if err := m.cache.ReleaseLock(context.WithoutCancel(ctx), tokenLockName); err != nil {
			logger.WithError(err).Warn("Failed to release token lock")
		}
	}()

	// double-check after winning the lock
	if token, ok, err := m.cachedToken(ctx); err == nil && ok {
		return token, nil
	}

	return m.requestNewToken(ctx)
}

// requestNewToken issues a token via POST /oauth2/tokenP and caches it.
// Caching failures never fail a successful issue.
func (m *TokenManager) requestNewToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     m.appKey,
		"appsecret":  m.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/oauth2/tokenP", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISTokenRefresh, "Token request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISUnauthorized, "Token request forbidden, check API keys", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISRateLimit, "Token request rate limited", nil)
	case resp.StatusCode != http.StatusOK:
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISTokenRefresh,
			fmt.Sprintf("Token request returned status %d", resp.StatusCode), nil)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISTokenRefresh, "Failed to decode token response", err)
	}
	if body.AccessToken == "" {
		monitoring.RecordTokenRefresh("error")
		return "", apperrors.NewAppError(apperrors.ErrCodeKISTokenRefresh, "No access token in response", nil)
	}

	expiresIn := body.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	ttl := time.Duration(expiresIn) * time.Second
	expiresAt := time.Now().Add(ttl - tokenBuffer)

	if err := m.cache.Set(ctx, tokenKey, body.AccessToken, ttl); err != nil {
		logger.WithError(err).Warn("Failed to cache token")
	} else if err := m.cache.Set(ctx, tokenExpiresKey, expiresAt.Format(time.RFC3339), ttl); err != nil {
		logger.WithError(err).Warn("Failed to cache token expiry")
	}

	monitoring.RecordTokenRefresh("success")
	logger.WithField("expires_at", expiresAt.Format(time.RFC3339)).Info("KIS token issued")
	return body.AccessToken, nil
}

// Invalidate removes the cached token. Used after an upstream 403.
func (m *TokenManager) Invalidate(ctx context.Context) {
	if err := m.cache.Delete(ctx, tokenKey, tokenExpiresKey); err != nil {
		logger.WithError(err).Warn("Failed to invalidate token cache")
		return
	}
	logger.Info("KIS token invalidated")
}

// Info reports the current token state for the debug endpoint
func (m *TokenManager) Info(ctx context.Context) TokenInfo {
	info := TokenInfo{CacheAvailable: true}

	var token string
	if err := m.cache.Get(ctx, tokenKey, &token); err != nil {
		if err != cache.ErrCacheMiss {
			info.CacheAvailable = false
		}
		return info
	}
	info.HasToken = true
	info.TokenLength = len(token)

	var expiresStr string
	if err := m.cache.Get(ctx, tokenExpiresKey, &expiresStr); err != nil {
		return info
	}
	info.ExpiresAt = expiresStr

	expiresAt, err := time.Parse(time.RFC3339, expiresStr)
	if err != nil {
		info.ExpiresAt = "invalid_format"
		return info
	}

	if time.Now().Before(expiresAt) {
		info.IsValid = true
		info.TimeToExpiry = time.Until(expiresAt).Round(time.Second).String()
	} else {
		info.TimeToExpiry = "expired"
	}
	return info
}
