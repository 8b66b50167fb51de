// Package echo provides Echo middleware for gousers.
package echo

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
)

// ContextKey is the key used to store the request id in Echo's context.
const ContextKey = "request_id"

// RequestID creates an Echo middleware that adopts or generates the
// X-Request-ID and stores it in both Echo's and the request's context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := middleware.ResolveRequestID(req.Header.Get(middleware.RequestIDHeader))

			c.Response().Header().Set(middleware.RequestIDHeader, id)
			c.SetRequest(req.WithContext(middleware.SetRequestID(req.Context(), id)))
			c.Set(ContextKey, id)

			return next(c)
		}
	}
}

// RateLimit creates an Echo middleware that limits every path outside skipPaths.
func RateLimit(limiter ratelimit.Limiter, skipPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if middleware.ShouldSkip(req, skipPaths) {
				return next(c)
			}

			key := ratelimit.GetClientIP(req)
			res, err := limiter.Allow(req.Context(), key)
			if err != nil {
				log.Printf("[ratelimit] error checking rate limit for key %s: %v", key, err)
				return next(c)
			}

			for k, v := range res.Headers() {
				c.Response().Header().Set(k, v)
			}
			if !res.Allowed {
				return c.JSON(http.StatusTooManyRequests, ratelimit.LimitedBody())
			}

			return next(c)
		}
	}
}

// RequestIDFrom retrieves the request id from Echo's context.
func RequestIDFrom(c echo.Context) string {
	if id, ok := c.Get(ContextKey).(string); ok {
		return id
	}
	return ""
}
