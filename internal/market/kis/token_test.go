package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dontcare/internal/cache"
	apperrors "dontcare/internal/errors"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, cache.Cacher) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCacheFromClient(client)
	t.Cleanup(func() { c.Close() })
	return mr, c
}

// newTokenServer serves /oauth2/tokenP and counts issued tokens
func newTokenServer(t *testing.T, issued *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/tokenP" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode token request: %v", err)
		}
		if body["grant_type"] != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", body["grant_type"])
		}
		if body["appkey"] != "test-key" || body["appsecret"] != "test-secret" {
			t.Errorf("unexpected credentials %q/%q", body["appkey"], body["appsecret"])
		}

		issued.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-issued",
			"expires_in":   86400,
		})
	}))
}

func TestGetTokenIssuesAndReuses(t *testing.T) {
	_, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	ctx := context.Background()

	token, err := m.GetToken(ctx)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "tok-issued" {
		t.Errorf("token = %q, want tok-issued", token)
	}

	// second call must come from the cache
	if _, err := m.GetToken(ctx); err != nil {
		t.Fatalf("second GetToken failed: %v", err)
	}
	if n := issued.Load(); n != 1 {
		t.Errorf("issued %d tokens, want 1", n)
	}
}

func TestGetTokenRefreshesExpired(t *testing.T) {
	_, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	ctx := context.Background()
	// seed a token that is already past its expiry
	if err := c.Set(ctx, "kis_api_token", "tok-stale", time.Hour); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	expired := time.Now().Add(-time.Minute).Format(time.RFC3339)
	if err := c.Set(ctx, "kis_api_token_expires", expired, time.Hour); err != nil {
		t.Fatalf("seed expiry: %v", err)
	}

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	token, err := m.GetToken(ctx)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "tok-issued" {
		t.Errorf("token = %q, want fresh tok-issued", token)
	}
	if n := issued.Load(); n != 1 {
		t.Errorf("issued %d tokens, want 1", n)
	}
}

func TestGetTokenWaitsForOtherHolder(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff polling takes seconds")
	}

	_, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	ctx := context.Background()
	acquired, err := c.AcquireLock(ctx, "kis_api_token", 30*time.Second)
	if err != nil || !acquired {
		t.Fatalf("failed to hold lock: acquired=%v err=%v", acquired, err)
	}

	// the other holder finishes its refresh while we poll
	go func() {
		time.Sleep(500 * time.Millisecond)
		expires := time.Now().Add(time.Hour).Format(time.RFC3339)
		c.Set(ctx, "kis_api_token", "tok-other", time.Hour)
		c.Set(ctx, "kis_api_token_expires", expires, time.Hour)
	}()

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	token, err := m.GetToken(ctx)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "tok-other" {
		t.Errorf("token = %q, want tok-other from the other holder", token)
	}
	if n := issued.Load(); n != 0 {
		t.Errorf("issued %d tokens, want 0", n)
	}
}

func TestGetTokenDirectWhenCacheDown(t *testing.T) {
	mr, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	mr.Close()

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	token, err := m.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "tok-issued" {
		t.Errorf("token = %q, want direct tok-issued", token)
	}
}

func TestGetTokenUpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode apperrors.ErrorCode
	}{
		{"forbidden", http.StatusForbidden, apperrors.ErrCodeKISUnauthorized},
		{"rate_limited", http.StatusTooManyRequests, apperrors.ErrCodeKISRateLimit},
		{"server_error", http.StatusInternalServerError, apperrors.ErrCodeKISTokenRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestCache(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
			_, err := m.GetToken(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			appErr, ok := err.(*apperrors.AppError)
			if !ok {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", appErr.Code, tt.wantCode)
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	_, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	ctx := context.Background()

	if _, err := m.GetToken(ctx); err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	m.Invalidate(ctx)
	if _, err := m.GetToken(ctx); err != nil {
		t.Fatalf("GetToken after invalidate failed: %v", err)
	}
	if n := issued.Load(); n != 2 {
		t.Errorf("issued %d tokens, want 2 after invalidation", n)
	}
}

func TestInfo(t *testing.T) {
	_, c := newTestCache(t)
	var issued atomic.Int64
	srv := newTokenServer(t, &issued)
	defer srv.Close()

	m := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	ctx := context.Background()

	info := m.Info(ctx)
	if info.HasToken || info.IsValid {
		t.Errorf("empty cache should have no token: %+v", info)
	}
	if !info.CacheAvailable {
		t.Error("cache should be reported available")
	}

	if _, err := m.GetToken(ctx); err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}

	info = m.Info(ctx)
	if !info.HasToken || !info.IsValid {
		t.Errorf("expected valid token info, got %+v", info)
	}
	if info.TokenLength != len("tok-issued") {
		t.Errorf("token length = %d", info.TokenLength)
	}
	if info.TimeToExpiry == "" || info.TimeToExpiry == "expired" {
		t.Errorf("time to expiry = %q", info.TimeToExpiry)
	}
}
