package middleware

import (
	"net/http"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitPerIP answers 429 once a client IP exceeds its quota.
func RateLimitPerIP(limiter *ratelimit.PerKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
