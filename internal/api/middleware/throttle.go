package middleware

import (
	"log/slog"
	"net/http"

	"librarydesk/internal/pkg/metrics"
	"librarydesk/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// LoginThrottle 对登录提交做令牌桶限流，缓解口令爆破。
//
// 桶耗尽时直接返回 429，不等待。限流器为 nil 时中间件是透传的。
func LoginThrottle(limiter *ratelimit.RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context())
		if err != nil {
			// Redis 故障时放行，登录可用性优先于限流
			if logger != nil {
				logger.Warn("login throttle check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.LoginThrottledTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}
