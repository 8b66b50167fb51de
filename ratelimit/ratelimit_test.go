package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// allowN calls Allow n times for key and returns the last result.
func allowN(t *testing.T, l Limiter, key string, n int) Result {
	t.Helper()
	var res Result
	for range n {
		var err error
		if res, err = l.Allow(context.Background(), key); err != nil {
			t.Fatalf("Allow(%q) error = %v", key, err)
		}
	}
	return res
}

func TestMemoryLimiter_CountsDown(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	defer l.Close()

	for want := 2; want >= 0; want-- {
		res := allowN(t, l, "198.51.100.1", 1)
		if !res.Allowed || res.Remaining != want {
			t.Fatalf("got allowed=%v remaining=%d, want allowed remaining=%d", res.Allowed, res.Remaining, want)
		}
	}

	res := allowN(t, l, "198.51.100.1", 1)
	if res.Allowed {
		t.Error("request over the limit was allowed")
	}
	if res.Remaining != 0 || res.Limit != 3 {
		t.Errorf("remaining=%d limit=%d, want 0 and 3", res.Remaining, res.Limit)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	defer l.Close()

	if res := allowN(t, l, "alice", 2); res.Allowed {
		t.Error("alice: second request allowed")
	}
	if res := allowN(t, l, "bob", 1); !res.Allowed {
		t.Error("bob: first request denied")
	}
}

func TestMemoryLimiter_ResetAndExpiry(t *testing.T) {
	t.Run("reset", func(t *testing.T) {
		l := NewMemoryLimiter(1, time.Minute)
		defer l.Close()

		allowN(t, l, "k", 1)
		if err := l.Reset(context.Background(), "k"); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if res := allowN(t, l, "k", 1); !res.Allowed {
			t.Error("denied after reset")
		}
	})

	t.Run("window rolls over", func(t *testing.T) {
		l := NewMemoryLimiter(1, 40*time.Millisecond)
		defer l.Close()

		if res := allowN(t, l, "k", 2); res.Allowed {
			t.Fatal("second request in window allowed")
		}
		time.Sleep(50 * time.Millisecond)
		if res := allowN(t, l, "k", 1); !res.Allowed {
			t.Error("denied in new window")
		}
	})

	t.Run("expired windows are swept", func(t *testing.T) {
		l := NewMemoryLimiter(1, 10*time.Millisecond)
		defer l.Close()

		allowN(t, l, "k", 1)
		time.Sleep(15 * time.Millisecond)
		l.removeExpired()

		l.mu.Lock()
		n := len(l.windows)
		l.mu.Unlock()
		if n != 0 {
			t.Errorf("%d windows left after sweep", n)
		}
	})
}

func TestMemoryLimiter_Defaults(t *testing.T) {
	l := NewMemoryLimiter(0, 0)
	defer l.Close()

	if l.limit != DefaultRequests || l.period != DefaultWindow {
		t.Errorf("limit=%d period=%v, want %d and %v", l.limit, l.period, DefaultRequests, DefaultWindow)
	}
}

func TestMemoryLimiter_CloseIsIdempotent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)

	for i := range 2 {
		if err := l.Close(); err != nil {
			t.Errorf("Close() #%d error = %v", i+1, err)
		}
	}
}

func TestResult_RetryAfter(t *testing.T) {
	if got := (Result{ResetAt: time.Now().Add(-time.Minute)}).RetryAfter(); got != 0 {
		t.Errorf("past reset: RetryAfter() = %d, want 0", got)
	}
	if got := (Result{ResetAt: time.Now().Add(30 * time.Second)}).RetryAfter(); got != 30 {
		t.Errorf("future reset: RetryAfter() = %d, want 30", got)
	}
}

func TestResult_Headers(t *testing.T) {
	reset := time.Now().Add(10 * time.Second)

	allowed := Result{Allowed: true, Limit: 5, Remaining: 3, ResetAt: reset}.Headers()
	if allowed["X-RateLimit-Limit"] != "5" || allowed["X-RateLimit-Remaining"] != "3" {
		t.Errorf("Headers() = %v", allowed)
	}
	if allowed["X-RateLimit-Reset"] != strconv.FormatInt(reset.Unix(), 10) {
		t.Errorf("X-RateLimit-Reset = %q", allowed["X-RateLimit-Reset"])
	}
	if _, ok := allowed["Retry-After"]; ok {
		t.Error("allowed result carries Retry-After")
	}

	denied := Result{Limit: 5, ResetAt: reset}.Headers()
	if denied["Retry-After"] == "" {
		t.Error("denied result lacks Retry-After")
	}
}

func TestMiddleware_Limits(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	defer l.Close()

	h := Middleware(l, &Config{
		KeyFunc: func(*http.Request) string { return "shared" },
	})(okHandler)

	for i := range 2 {
		rec := serve(h, "/users")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
		if got, want := rec.Header().Get("X-RateLimit-Remaining"), strconv.Itoa(1-i); got != want {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %q", i+1, got, want)
		}
	}

	rec := serve(h, "/users")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] != gousers.MessageRateLimited {
		t.Errorf("error = %q, want %q", body["error"], gousers.MessageRateLimited)
	}
}

func TestMiddleware_Skip(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	defer l.Close()

	h := Middleware(l, &Config{
		SkipFunc: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})(okHandler)

	serve(h, "/users")
	if rec := serve(h, "/users"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("/users: status = %d, want 429", rec.Code)
	}

	rec := serve(h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz: status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("skipped request carries rate limit headers")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (Result, error) {
	return Result{}, errors.New("redis: connection refused")
}

func (failingLimiter) Reset(ctx context.Context, key string) error {
	return nil
}

func (failingLimiter) Close() error {
	return nil
}

func TestMiddleware_LimiterErrorFailsOpen(t *testing.T) {
	if rec := serve(Middleware(failingLimiter{}, nil)(okHandler), "/users"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestWriteLimited_LogsWriteError(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(middleware.SetRequestID(req.Context(), "req-42"))
	w := brokenWriter{httptest.NewRecorder()}

	WriteLimited(w, req, Result{Limit: 1, ResetAt: time.Now().Add(time.Second)})

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "[ratelimit] request req-42") || !strings.Contains(out, "connection reset by peer") {
		t.Errorf("log output = %q", out)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		remote    string
		want      string
	}{
		{name: "remote only", remote: "192.0.2.10:5050", want: "192.0.2.10"},
		{name: "forwarded chain uses first hop", forwarded: " 198.51.100.7 , 10.0.0.1", remote: "192.0.2.1:80", want: "198.51.100.7"},
		{name: "real ip", realIP: "198.51.100.9", remote: "192.0.2.1:80", want: "198.51.100.9"},
		{name: "forwarded beats real ip", forwarded: "198.51.100.7", realIP: "198.51.100.9", remote: "192.0.2.1:80", want: "198.51.100.7"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote without port", remote: "@unix", want: "@unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.forwarded, tt.realIP, tt.remote); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP_ReadsHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.RemoteAddr = "[::1]:12345"
	if got := GetClientIP(req); got != "::1" {
		t.Errorf("GetClientIP() = %q, want ::1", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.5")
	if got := GetClientIP(req); got != "203.0.113.5" {
		t.Errorf("GetClientIP() = %q, want 203.0.113.5", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.KeyFunc == nil || cfg.OnLimited == nil {
		t.Errorf("DefaultConfig() = %+v, want KeyFunc and OnLimited set", cfg)
	}
}

func TestNewRedisLimiter_Defaults(t *testing.T) {
	l := NewRedisLimiter(&RedisConfig{})

	if l.keyPrefix != DefaultRedisKeyPrefix {
		t.Errorf("keyPrefix = %q, want %q", l.keyPrefix, DefaultRedisKeyPrefix)
	}
	if l.limit != DefaultRequests || l.period != DefaultWindow {
		t.Errorf("limit=%d period=%v, want %d and %v", l.limit, l.period, DefaultRequests, DefaultWindow)
	}
}

func BenchmarkMemoryLimiter_Allow(b *testing.B) {
	l := NewMemoryLimiter(1<<30, time.Hour)
	defer l.Close()

	ctx := context.Background()
	for b.Loop() {
		l.Allow(ctx, "bench")
	}
}
