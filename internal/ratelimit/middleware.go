package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware throttles requests per client IP using the shared token bucket.
// A nil limiter disables throttling; a redis failure fails open so payment
// intake never depends on the cache being up.
func Middleware(tb *TokenBucket, log *zap.Logger, ratePerMin float64, burst int) gin.HandlerFunc {
	ratePerSec := ratePerMin / 60
	return func(c *gin.Context) {
		if tb == nil || ratePerSec <= 0 || burst <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:orders:%s", c.ClientIP())
		res, err := tb.Allow(c.Request.Context(), key, ratePerSec, burst)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"type":    "rate_limited",
					"message": "too many requests",
				},
			})
			return
		}
		c.Next()
	}
}
