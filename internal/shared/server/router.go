package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"visadoc-backend/internal/shared/config"
	"visadoc-backend/internal/shared/metrics"
	"visadoc-backend/internal/shared/server/middleware"
	"visadoc-backend/internal/shared/server/respond"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupLLM     = "LLM"
)

// Routes is implemented by handlers that mount themselves under /api/v1.
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, routes ...Routes) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.SessionID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	rules := map[string]middleware.RateLimitRule{}
	if cfg.LLMRateLimitPerMin > 0 {
		rules[rateGroupLLM] = middleware.PerMinute(cfg.LLMRateLimitPerMin, 5)
	}
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: rateGroupDefault,
		GroupFor:     rateLimitGroup,
	}))

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	for _, rt := range routes {
		if rt != nil {
			rt.RegisterRoutes(api)
		}
	}

	return r
}

// rateLimitGroup puts routes that call the LLM in their own group.
func rateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	for _, suffix := range []string{"/analyze", "/translate", "/ask"} {
		if strings.HasSuffix(path, suffix) {
			return rateGroupLLM
		}
	}
	return rateGroupDefault
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
