package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", JWTMiddleware(testSecret, testLogger()))
	group.GET("/me", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		username, _ := GetUsername(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "username": username})
	})
	adminGroup := group.Group("/admin", RequireAdmin(testLogger()))
	adminGroup.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	token, err := GenerateToken(testSecret, "u1", "alice", false, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	r := newTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestJWTMiddlewareRejectsBadTokens(t *testing.T) {
	expired, err := GenerateToken(testSecret, "u1", "alice", false, -time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	wrongSecret, err := GenerateToken("other-secret", "u1", "alice", false, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "token-without-prefix"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong secret", "Bearer " + wrongSecret},
	}

	r := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newTestRouter()

	t.Run("admin token passes", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "u1", "alice", true, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("non-admin token forbidden", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "u1", "alice", false, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}
