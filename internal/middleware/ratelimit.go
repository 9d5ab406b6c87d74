package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// RateLimit enforces a per-client request budget over the routes it
// wraps. This is the general API limit; login and upload carry their own
// tighter budgets in their handlers. A non-positive maximum disables the
// limit.
func RateLimit(limiter *security.RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxRequests <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !limiter.AllowRequest("api_"+ip, maxRequests, window, ip, c.Request.UserAgent()) {
			util.Error(c, http.StatusTooManyRequests, util.CodeRateLimited, "Too many requests. Please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
