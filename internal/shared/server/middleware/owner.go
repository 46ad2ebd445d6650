package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"redact-backend/internal/shared/server/respond"
)

const (
	ownerIDKey    = "ownerId"
	ownerIDHeader = "X-Owner-Id"
)

// Owner requires an owner identity on every request except the public paths.
// Authentication happens upstream (API gateway authorizer); this service only
// trusts the forwarded owner header.
func Owner(publicPaths ...string) gin.HandlerFunc {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if _, ok := public[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		ownerID := strings.TrimSpace(c.GetHeader(ownerIDHeader))
		if ownerID == "" || len(ownerID) > 256 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing owner identity", nil)
			return
		}
		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

// OwnerIDFromContext returns the owner set by Owner.
func OwnerIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ownerIDKey)
}
