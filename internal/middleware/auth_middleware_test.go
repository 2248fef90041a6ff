package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"carhire/internal/models"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthRequired(testSecret, logger.NewNopLogger())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		s := Subject(c)
		c.String(http.StatusOK, s.UserID+"/"+string(s.Role))
	})
	r.GET("/me", handlers...)
	return r
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(userID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	r := newRouter()
	tests := []struct {
		name   string
		target string
		header string
		status int
		body   string
	}{
		{name: "missing", target: "/me", status: http.StatusUnauthorized},
		{name: "not bearer", target: "/me", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage", target: "/me", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "header", target: "/me", header: "Bearer " + token(t, "d1", "driver"), status: http.StatusOK, body: "d1/driver"},
		{name: "query", target: "/me?token=" + token(t, "c1", "customer"), status: http.StatusOK, body: "c1/customer"},
		{name: "unknown role", target: "/me?token=" + token(t, "c2", "rider"), status: http.StatusOK, body: "c2/customer"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.status, rec.Code)
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.name, tt.body, rec.Body.String())
		}
	}
}

func TestRoleRequired(t *testing.T) {
	t.Parallel()

	r := newRouter(RoleRequired(models.RoleDriver, models.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "c1", "customer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for customer, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "a1", "admin"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", rec.Code)
	}
}
