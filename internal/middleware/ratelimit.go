package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"dontcare/internal/cache"
	"dontcare/internal/errors"
	"dontcare/internal/logger"
)

// RateLimit enforces a global requests-per-minute budget for the whole
// process. Used as a coarse outer guard in front of the API.
func RateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			AbortWithError(c, errors.NewAppError(errors.ErrCodeRateLimit,
				"Too many requests, slow down", nil))
			return
		}
		c.Next()
	}
}

// IPRateLimit enforces a per-client sliding window shared across
// instances through the cache. scope separates budgets per endpoint
// group. Cache outages fail open; rate limiting must not take the API
// down with it.
func IPRateLimit(c cache.Cacher, scope string, requestsPerMinute int) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := fmt.Sprintf("rl:%s:%s", scope, ctx.ClientIP())

		allowed, err := c.CheckRateLimit(ctx.Request.Context(), key, requestsPerMinute, time.Minute)
		if err != nil {
			logger.WithError(err).Warn("Rate limit check failed, allowing request")
			ctx.Next()
			return
		}
		if !allowed {
			logger.WithFields(map[string]interface{}{
				"ip":    ctx.ClientIP(),
				"scope": scope,
			}).Warn("Rate limit exceeded")
			AbortWithError(ctx, errors.NewAppError(errors.ErrCodeRateLimit,
				"Too many requests, try again later", nil))
			return
		}
		ctx.Next()
	}
}
