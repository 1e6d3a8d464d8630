package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/model"
	"botdesk/internal/pkg/jwtutil"
	"botdesk/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

// AuthJWT rejects requests without a valid bearer token.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}

		setPrincipal(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid bearer token is present and
// lets everyone else through.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(strings.TrimSpace(c.GetHeader("Authorization"))); ok {
			if claims, err := jwtutil.ParseToken(secret, token); err == nil {
				setPrincipal(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole admits the given role and every role above it. Must run after
// AuthJWT.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
			return
		}
		if rank(principal.Role) < rank(role) {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller attached by AuthJWT or OptionalAuth.
func CurrentPrincipal(c *gin.Context) (app.Principal, bool) {
	id := c.GetUint(ContextUserIDKey)
	if id == 0 {
		return app.Principal{}, false
	}
	return app.Principal{ID: id, Role: model.Role(c.GetString(ContextRoleKey))}, true
}

func setPrincipal(c *gin.Context, claims *jwtutil.Claims) {
	c.Set(ContextUserIDKey, claims.UserID)
	c.Set(ContextRoleKey, claims.Role)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func rank(role model.Role) int {
	switch role {
	case model.RoleAdmin:
		return 3
	case model.RoleSubAdmin:
		return 2
	case model.RoleUser:
		return 1
	}
	return 0
}
