// Package handler exposes the hub's HTTP API with Gin: session auth,
// workspace and catalog routes, aggregate stats, the admin console surface,
// and SSE streams for live updates.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/techastra/studyhub/internal/identity"
)

const claimsCtxKey = "hub_session_claims"

// RequireSession returns a middleware that validates the Bearer session token
// and stores its claims on the request context.
func RequireSession(tokens *identity.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		c.Set(claimsCtxKey, claims)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the session claims carry the admin
// flag. Must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromCtx(c)
		if claims == nil || !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// ClaimsFromCtx returns the session claims set by RequireSession, or nil.
func ClaimsFromCtx(c *gin.Context) *identity.SessionClaims {
	v, ok := c.Get(claimsCtxKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*identity.SessionClaims)
	return claims
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// SSE clients cannot set headers from EventSource; allow a query token.
	return c.Query("token")
}
