// Package fiber provides Fiber middleware for gousers.
package fiber

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
)

// ContextKey is the key used to store the request id in Fiber's Locals.
const ContextKey = "request_id"

// RequestID creates a Fiber middleware that adopts or generates the
// X-Request-ID and stores it in Locals and the user context.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := middleware.ResolveRequestID(c.Get(middleware.RequestIDHeader))

		c.Set(middleware.RequestIDHeader, id)
		c.SetUserContext(middleware.SetRequestID(c.UserContext(), id))
		c.Locals(ContextKey, id)

		return c.Next()
	}
}

// RateLimit creates a Fiber middleware that limits every path outside skipPaths.
func RateLimit(limiter ratelimit.Limiter, skipPaths ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if middleware.SkipPath(c.Path(), skipPaths) {
			return c.Next()
		}

		key := ClientIP(c)
		res, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			log.Printf("[ratelimit] error checking rate limit for key %s: %v", key, err)
			return c.Next()
		}

		for k, v := range res.Headers() {
			c.Set(k, v)
		}
		if !res.Allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(ratelimit.LimitedBody())
		}

		return c.Next()
	}
}

// ClientIP returns the rate limit key for c.
func ClientIP(c *fiber.Ctx) string {
	return ratelimit.ClientIP(c.Get("X-Forwarded-For"), c.Get("X-Real-IP"), c.Context().RemoteAddr().String())
}

// RequestIDFrom retrieves the request id from Fiber's Locals.
func RequestIDFrom(c *fiber.Ctx) string {
	if id, ok := c.Locals(ContextKey).(string); ok {
		return id
	}
	return ""
}
