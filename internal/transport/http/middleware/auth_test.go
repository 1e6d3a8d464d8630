package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botdesk/internal/model"
	"botdesk/internal/pkg/jwtutil"
)

const testSecret = "middleware-test-secret"

func token(t *testing.T, secret string, id uint, role model.Role) string {
	t.Helper()
	tok, err := jwtutil.GenerateToken(secret, time.Hour, id, string(role), "tester")
	require.NoError(t, err)
	return "Bearer " + tok
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role, "authenticated": ok})
	})
	r.GET("/", handlers...)
	return r
}

func do(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthJWT(t *testing.T) {
	r := newEngine(AuthJWT(testSecret))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "foreign signature", header: token(t, "other-secret", 7, model.RoleUser), status: http.StatusUnauthorized},
		{name: "valid", header: token(t, testSecret, 7, model.RoleUser), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(OptionalAuth(testSecret))

	t.Run("anonymous passes", func(t *testing.T) {
		w := do(r, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":false`)
	})

	t.Run("bad token is ignored", func(t *testing.T) {
		w := do(r, "Bearer garbage")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":false`)
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		w := do(r, token(t, testSecret, 42, model.RoleSubAdmin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":42`)
		assert.Contains(t, w.Body.String(), `"role":"SUB_ADMIN"`)
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		required model.Role
		caller   model.Role
		status   int
	}{
		{name: "admin only rejects sub admin", required: model.RoleAdmin, caller: model.RoleSubAdmin, status: http.StatusForbidden},
		{name: "admin only admits admin", required: model.RoleAdmin, caller: model.RoleAdmin, status: http.StatusOK},
		{name: "sub admin admits admin", required: model.RoleSubAdmin, caller: model.RoleAdmin, status: http.StatusOK},
		{name: "sub admin rejects user", required: model.RoleSubAdmin, caller: model.RoleUser, status: http.StatusForbidden},
		{name: "unknown role is lowest", required: model.RoleUser, caller: model.Role("GUEST"), status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(AuthJWT(testSecret), RequireRole(tt.required))
			w := do(r, token(t, testSecret, 1, tt.caller))
			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("without auth", func(t *testing.T) {
		r := newEngine(RequireRole(model.RoleUser))
		assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	})
}
