// Package middleware provides net/http middleware and error mapping shared by
// every gousers router.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aloks98/gousers"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

// RequestIDKey is the context key for the request id.
const RequestIDKey contextKey = "gousers_request_id"

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds ids adopted from clients.
const maxRequestIDLen = 128

// ErrorToHTTPStatus converts an error to an HTTP status code.
func ErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, gousers.ErrValidation), errors.Is(err, gousers.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, gousers.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, gousers.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, gousers.ErrStoreTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the client-facing message for err.
func ErrorMessage(err error) string {
	switch ErrorToHTTPStatus(err) {
	case http.StatusBadRequest:
		if errors.Is(err, gousers.ErrInvalidBody) {
			return gousers.MessageInvalidBody
		}
		return gousers.MessageValidation
	case http.StatusNotFound:
		return gousers.MessageUserNotFound
	case http.StatusTooManyRequests:
		return gousers.MessageRateLimited
	case http.StatusServiceUnavailable:
		return gousers.MessageUnavailable
	default:
		return gousers.MessageInternal
	}
}

// WriteError writes err as {"error": message} with its mapped status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ErrorToHTTPStatus(err))
	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": ErrorMessage(err)}); encErr != nil {
		log.Printf("[server] request %s: writing error response: %v", GetRequestID(r.Context()), encErr)
	}
}

// ShouldSkip checks if the request path matches any of skipPaths.
func ShouldSkip(r *http.Request, skipPaths []string) bool {
	return SkipPath(r.URL.Path, skipPaths)
}

// SkipPath checks if path matches any of skipPaths.
func SkipPath(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		if matchPath(skip, path) {
			return true
		}
	}
	return false
}

// SkipPaths returns a predicate for ratelimit.Config.SkipFunc.
func SkipPaths(paths ...string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return ShouldSkip(r, paths)
	}
}

// matchPath checks if a path matches a pattern.
// A trailing /* matches any deeper path; * alone matches one segment.
func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(path, prefix+"/")
	}

	if !strings.Contains(pattern, "*") {
		return false
	}

	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if part != "*" && part != pathParts[i] {
			return false
		}
	}
	return true
}

// SetRequestID stores the request id in the context.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// NewRequestID returns a fresh random id.
func NewRequestID() string {
	return uuid.NewString()
}

// ResolveRequestID returns incoming when it is usable, or a fresh id.
func ResolveRequestID(incoming string) string {
	if incoming == "" || len(incoming) > maxRequestIDLen {
		return NewRequestID()
	}
	return incoming
}

// RequestID adopts the incoming X-Request-ID, or generates one, and echoes
// it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ResolveRequestID(r.Header.Get(RequestIDHeader))

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(SetRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// AccessLog logs one line per request.
func AccessLog(logger gousers.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Printf("[server] %s %s %d %dB %s id=%s",
				r.Method, r.URL.Path, status, rec.bytes, time.Since(start), GetRequestID(r.Context()))
		})
	}
}

// Recover turns a panic into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				log.Printf("[server] request %s: panic: %v", GetRequestID(r.Context()), rv)
				WriteError(w, r, errors.New("panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
