// Package ratelimit provides per-client request limiting for the gousers HTTP API.
package ratelimit

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/middleware"
)

// Default limits.
const (
	DefaultRequests = 100
	DefaultWindow   = time.Minute
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, never negative.
func (r Result) RetryAfter() int {
	secs := int(time.Until(r.ResetAt).Seconds() + 0.5)
	if secs < 0 {
		return 0
	}
	return secs
}

// Headers returns the X-RateLimit-* response headers for r, plus
// Retry-After when the request was rejected.
func (r Result) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
	if !r.Allowed {
		h["Retry-After"] = strconv.Itoa(r.RetryAfter())
	}
	return h
}

// LimitedBody is the JSON body of a 429 response.
func LimitedBody() map[string]string {
	return map[string]string{"error": gousers.MessageRateLimited}
}

// Limiter defines the interface for rate limiters.
type Limiter interface {
	// Allow records one request for key and reports whether it fits the limit.
	Allow(ctx context.Context, key string) (Result, error)

	// Reset clears the recorded requests for key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the limiter.
	Close() error
}

// Config holds middleware configuration.
type Config struct {
	// KeyFunc extracts the rate limit key from an HTTP request.
	// Defaults to client IP address.
	KeyFunc func(r *http.Request) string

	// SkipFunc determines if a request should skip rate limiting.
	// Return true to skip.
	SkipFunc func(r *http.Request) bool

	// OnLimited writes the response for a rejected request.
	// Defaults to a 429 with a JSON error body.
	OnLimited func(w http.ResponseWriter, r *http.Request, res Result)
}

// DefaultConfig returns a default middleware configuration.
func DefaultConfig() *Config {
	return &Config{
		KeyFunc:   GetClientIP,
		OnLimited: WriteLimited,
	}
}

// WriteLimited writes the standard 429 response.
func WriteLimited(w http.ResponseWriter, r *http.Request, res Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter()))
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(LimitedBody()); err != nil {
		log.Printf("[ratelimit] request %s: writing limited response: %v", middleware.GetRequestID(r.Context()), err)
	}
}

// GetClientIP extracts the client IP from an HTTP request.
// Checks X-Forwarded-For and X-Real-IP headers first.
func GetClientIP(r *http.Request) string {
	return ClientIP(r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP"), r.RemoteAddr)
}

// ClientIP picks the client address from the forwarding headers and the
// peer address, for routers that do not expose an *http.Request.
func ClientIP(forwardedFor, realIP, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}

	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// window is one client's fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-memory fixed window rate limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates a limiter that admits limit requests per period per key.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultRequests
	}
	if period <= 0 {
		period = DefaultWindow
	}

	ml := &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		done:    make(chan struct{}),
	}

	go ml.cleanup()

	return ml
}

// Allow records one request for key.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.period)}
		m.windows[key] = w
	}

	res := Result{Limit: m.limit, ResetAt: w.resetAt}
	if w.count >= m.limit {
		return res, nil
	}

	w.count++
	res.Allowed = true
	res.Remaining = m.limit - w.count
	return res, nil
}

// Reset clears the window for key.
func (m *MemoryLimiter) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *MemoryLimiter) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}

// Middleware creates an HTTP middleware that applies rate limiting.
// Limiter errors are logged and the request is let through.
func Middleware(limiter Limiter, cfg *Config) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = GetClientIP
	}

	onLimited := cfg.OnLimited
	if onLimited == nil {
		onLimited = WriteLimited
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.SkipFunc != nil && cfg.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Printf("[ratelimit] error checking rate limit for key %s: %v", key, err)
				next.ServeHTTP(w, r)
				return
			}

			for k, v := range res.Headers() {
				w.Header().Set(k, v)
			}

			if !res.Allowed {
				onLimited(w, r, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
