package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"redact-backend/internal/deadletter"
	"redact-backend/internal/documents"
	"redact-backend/internal/rules"
	"redact-backend/internal/services/health"
	"redact-backend/internal/shared/config"
	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/server/respond"
	"redact-backend/internal/uploads"
)

// RouterDeps are the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config            config.Config
	Health            *health.Service
	DocumentHandler   *documents.Handler
	RulesHandler      *rules.Handler
	UploadsHandler    *uploads.Handler
	DeadLetterHandler *deadletter.Handler
	RateLimiter       *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		st := deps.Health.Check(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})

	owned := api.Group("")
	owned.Use(middleware.Owner())
	if deps.RateLimiter != nil {
		owned.Use(middleware.RateLimit(deps.RateLimiter))
	}

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(owned)
	}
	if deps.RulesHandler != nil {
		deps.RulesHandler.RegisterRoutes(owned)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(owned)
	}
	if deps.DeadLetterHandler != nil {
		deps.DeadLetterHandler.RegisterRoutes(owned)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
