package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret", time.Hour, 7*24*time.Hour)
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager()
	userID := uuid.New()

	access, err := m.GenerateAccessToken(userID, "a@b.c", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ValidateToken(access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != userID.String() {
		t.Errorf("user_id = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "a@b.c" || claims.Role != "user" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateWrongType(t *testing.T) {
	m := newTestManager()
	refresh, err := m.GenerateRefreshToken(uuid.New(), "a@b.c", "user")
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	if _, err := m.ValidateToken(refresh, TokenTypeAccess); err == nil {
		t.Error("expected refresh token to be rejected as access token")
	}
	if _, err := m.ValidateToken(refresh, TokenTypeRefresh); err != nil {
		t.Errorf("refresh token should validate as refresh: %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute, time.Hour)
	token, err := m.GenerateAccessToken(uuid.New(), "a@b.c", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateToken(token, TokenTypeAccess); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestValidateWrongSecret(t *testing.T) {
	m := newTestManager()
	token, _ := m.GenerateAccessToken(uuid.New(), "a@b.c", "user")

	other := NewJWTManager("other-secret", time.Hour, time.Hour)
	if _, err := other.ValidateToken(token, TokenTypeAccess); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager()

	router := gin.New()
	router.GET("/me", Middleware(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": c.GetString(ContextEmail)})
	})

	t.Run("valid token", func(t *testing.T) {
		token, _ := m.GenerateAccessToken(uuid.New(), "a@b.c", "user")
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}
