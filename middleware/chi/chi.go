// Package chi provides Chi middleware for gousers.
// Chi uses standard net/http middleware, so this package mostly
// forwards to the middleware and ratelimit packages.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
)

// RequestID adopts or generates the X-Request-ID for each request.
func RequestID(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// RateLimit creates a Chi middleware that limits every path outside skipPaths.
func RateLimit(limiter ratelimit.Limiter, skipPaths ...string) func(http.Handler) http.Handler {
	return ratelimit.Middleware(limiter, &ratelimit.Config{
		KeyFunc:  ratelimit.GetClientIP,
		SkipFunc: middleware.SkipPaths(skipPaths...),
	})
}

// RequestIDFrom retrieves the request id from the request context.
func RequestIDFrom(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// URLParam returns a URL parameter from Chi's route context.
func URLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
