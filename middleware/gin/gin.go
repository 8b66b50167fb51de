// Package gin provides Gin middleware for gousers.
package gin

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
)

// ContextKey is the key used to store the request id in Gin's context.
const ContextKey = "request_id"

// RequestID creates a Gin middleware that adopts or generates the
// X-Request-ID and stores it in both Gin's and the request's context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.ResolveRequestID(c.GetHeader(middleware.RequestIDHeader))

		c.Header(middleware.RequestIDHeader, id)
		c.Request = c.Request.WithContext(middleware.SetRequestID(c.Request.Context(), id))
		c.Set(ContextKey, id)

		c.Next()
	}
}

// RateLimit creates a Gin middleware that limits every path outside skipPaths.
func RateLimit(limiter ratelimit.Limiter, skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if middleware.ShouldSkip(c.Request, skipPaths) {
			c.Next()
			return
		}

		key := ratelimit.GetClientIP(c.Request)
		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Printf("[ratelimit] error checking rate limit for key %s: %v", key, err)
			c.Next()
			return
		}

		for k, v := range res.Headers() {
			c.Header(k, v)
		}
		if !res.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ratelimit.LimitedBody())
			return
		}

		c.Next()
	}
}

// RequestIDFrom retrieves the request id from Gin's context.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ContextKey)
}
