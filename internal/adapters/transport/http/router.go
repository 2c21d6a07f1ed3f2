package http

import (
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	Limiter          *ratelimit.PerKey
	Metrics          *middleware.Metrics
	Gatherer         prometheus.Gatherer
}

// NewRouter serves the auth API under /api next to /health and /metrics.
func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Handler())
	}
	if cfg.Limiter != nil {
		router.Use(middleware.RateLimitPerIP(cfg.Limiter))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	h.Mount(router.Group("/api"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}
