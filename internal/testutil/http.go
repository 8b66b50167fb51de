package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/ratelimit"
	"github.com/aloks98/gousers/server"
	"github.com/aloks98/gousers/store"
	"github.com/aloks98/gousers/store/memory"
)

// RouterFunc builds a router, as each server/* package's New does.
type RouterFunc func(h *handlers.Handler, opts server.Options) http.Handler

// NewTestRouter builds a router over a fresh in-memory service.
func NewTestRouter(t testing.TB, newRouter RouterFunc, opts server.Options) http.Handler {
	t.Helper()

	users, err := gousers.New(gousers.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("gousers.New() error = %v", err)
	}
	t.Cleanup(func() { users.Close() })

	return newRouter(handlers.New(users, nil), opts)
}

// Do sends one request through h and returns the recorded response.
func Do(t testing.TB, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return m
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	m := decodeUser(t, w)
	s, _ := m["error"].(string)
	return s
}

type markerKey struct{}

// contextRecorder keeps the context of the last List call.
type contextRecorder struct {
	*gousers.Users
	ctx context.Context
}

func (c *contextRecorder) List(ctx context.Context) ([]*store.User, error) {
	c.ctx = ctx
	return c.Users.List(ctx)
}

// RunRouterSuite checks that newRouter serves the full route table.
func RunRouterSuite(t *testing.T, newRouter RouterFunc) {
	t.Run("scenario", func(t *testing.T) {
		h := NewTestRouter(t, newRouter, server.Options{})

		w := Do(t, h, http.MethodPost, "/users", `{"name":"John Doe","email":"john@example.com"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("POST /users status = %d, body %s", w.Code, w.Body.String())
		}
		if got := decodeUser(t, w); got["id"] != float64(1) || got["name"] != "John Doe" || got["email"] != "john@example.com" {
			t.Errorf("POST /users = %v", got)
		}

		w = Do(t, h, http.MethodPost, "/users", `{"name":"Jane","email":"jane@example.com"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("second POST /users status = %d", w.Code)
		}
		if got := decodeUser(t, w); got["id"] != float64(2) {
			t.Errorf("second id = %v, want 2", got["id"])
		}

		w = Do(t, h, http.MethodGet, "/users/1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET /users/1 status = %d", w.Code)
		}
		if got := decodeUser(t, w); got["name"] != "John Doe" {
			t.Errorf("GET /users/1 = %v", got)
		}

		w = Do(t, h, http.MethodPut, "/users/1", `{"name":"John Smith","email":"john.smith@example.com"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("PUT /users/1 status = %d", w.Code)
		}
		if got := decodeUser(t, w); got["id"] != float64(1) || got["name"] != "John Smith" || got["email"] != "john.smith@example.com" {
			t.Errorf("PUT /users/1 = %v", got)
		}

		w = Do(t, h, http.MethodDelete, "/users/2", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("DELETE /users/2 status = %d", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("DELETE body = %q, want empty", w.Body.String())
		}

		w = Do(t, h, http.MethodGet, "/users/2", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("GET /users/2 status = %d, want 404", w.Code)
		}
		if got := errorOf(t, w); got != gousers.MessageUserNotFound {
			t.Errorf("GET /users/2 error = %q", got)
		}

		w = Do(t, h, http.MethodGet, "/users", "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET /users status = %d", w.Code)
		}
		var list []map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("GET /users invalid JSON: %v", err)
		}
		if len(list) != 1 || list[0]["name"] != "John Smith" {
			t.Errorf("GET /users = %v", list)
		}
	})

	t.Run("errors", func(t *testing.T) {
		h := NewTestRouter(t, newRouter, server.Options{})
		Do(t, h, http.MethodPost, "/users", `{"name":"John Doe","email":"john@example.com"}`)

		tests := []struct {
			name       string
			method     string
			path       string
			body       string
			wantStatus int
			wantError  string
		}{
			{"create missing email", http.MethodPost, "/users", `{"name":"x"}`, http.StatusBadRequest, gousers.MessageValidation},
			{"create empty body", http.MethodPost, "/users", "", http.StatusBadRequest, gousers.MessageValidation},
			{"create malformed", http.MethodPost, "/users", `{"name":`, http.StatusBadRequest, gousers.MessageInvalidBody},
			{"get unknown", http.MethodGet, "/users/99", "", http.StatusNotFound, gousers.MessageUserNotFound},
			{"get non-numeric", http.MethodGet, "/users/abc", "", http.StatusNotFound, gousers.MessageUserNotFound},
			{"update unknown", http.MethodPut, "/users/99", `{"name":"a","email":"b"}`, http.StatusNotFound, gousers.MessageUserNotFound},
			{"update unknown invalid", http.MethodPut, "/users/99", `{}`, http.StatusNotFound, gousers.MessageUserNotFound},
			{"update invalid", http.MethodPut, "/users/1", `{"email":"b"}`, http.StatusBadRequest, gousers.MessageValidation},
			{"delete unknown", http.MethodDelete, "/users/99", "", http.StatusNotFound, gousers.MessageUserNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := Do(t, h, tt.method, tt.path, tt.body)
				if w.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
				}
				if got := errorOf(t, w); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			})
		}

		// Failed requests leave the store untouched
		w := Do(t, h, http.MethodGet, "/users/1", "")
		if got := decodeUser(t, w); got["name"] != "John Doe" || got["email"] != "john@example.com" {
			t.Errorf("user after failures = %v", got)
		}
		w = Do(t, h, http.MethodPost, "/users", `{"name":"n","email":"e"}`)
		if got := decodeUser(t, w); got["id"] != float64(2) {
			t.Errorf("next id = %v, want 2", got["id"])
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		h := NewTestRouter(t, newRouter, server.Options{})
		Do(t, h, http.MethodPost, "/users", `{"name":"John Doe","email":"john@example.com"}`)

		big := `{"name":"` + strings.Repeat("a", handlers.MaxBodyBytes) + `","email":"e"}`
		for _, method := range []string{http.MethodPost, http.MethodPut} {
			path := "/users"
			if method == http.MethodPut {
				path = "/users/1"
			}

			w := Do(t, h, method, path, big)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("%s %s status = %d, want 400", method, path, w.Code)
			}
			if got := errorOf(t, w); got != gousers.MessageInvalidBody {
				t.Errorf("%s %s error = %q, want %q", method, path, got, gousers.MessageInvalidBody)
			}
		}

		var list []map[string]any
		w := Do(t, h, http.MethodGet, "/users", "")
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
		}
		if len(list) != 1 || list[0]["name"] != "John Doe" {
			t.Errorf("users after oversized bodies = %v", list)
		}
	})

	t.Run("request context", func(t *testing.T) {
		users, err := gousers.New(gousers.WithStore(memory.New()))
		if err != nil {
			t.Fatalf("gousers.New() error = %v", err)
		}
		t.Cleanup(func() { users.Close() })

		svc := &contextRecorder{Users: users}
		h := newRouter(handlers.New(svc, nil), server.Options{})

		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), markerKey{}, "from-client"))
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/users", nil).WithContext(ctx)
		h.ServeHTTP(httptest.NewRecorder(), req)

		if svc.ctx == nil {
			t.Fatal("List was not called")
		}
		if got := svc.ctx.Value(markerKey{}); got != "from-client" {
			t.Errorf("service context value = %v, want from-client", got)
		}
		cancel()
		if svc.ctx.Err() == nil {
			t.Error("cancelling the request did not cancel the service context")
		}
	})

	t.Run("index and health", func(t *testing.T) {
		h := NewTestRouter(t, newRouter, server.Options{})

		w := Do(t, h, http.MethodGet, "/", "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET / status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET / Content-Type = %q", ct)
		}

		w = Do(t, h, http.MethodGet, "/healthz", "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET /healthz status = %d", w.Code)
		}
		if got := decodeUser(t, w); got["status"] != "ok" {
			t.Errorf("GET /healthz = %v", got)
		}
	})

	t.Run("request id", func(t *testing.T) {
		h := NewTestRouter(t, newRouter, server.Options{})

		w := Do(t, h, http.MethodGet, "/users", "")
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("response has no X-Request-ID")
		}

		req := httptest.NewRequest(http.MethodGet, "/users/5", nil)
		req.Header.Set("X-Request-ID", "trace-5")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") != "trace-5" {
			t.Errorf("X-Request-ID = %q, want trace-5", rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		limiter := ratelimit.NewMemoryLimiter(2, time.Minute)
		t.Cleanup(func() { limiter.Close() })
		h := NewTestRouter(t, newRouter, server.Options{Limiter: limiter})

		for i := 0; i < 2; i++ {
			if w := Do(t, h, http.MethodGet, "/users", ""); w.Code != http.StatusOK {
				t.Fatalf("request %d status = %d", i+1, w.Code)
			}
		}

		w := Do(t, h, http.MethodGet, "/users", "")
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", w.Code)
		}
		if got := errorOf(t, w); got != gousers.MessageRateLimited {
			t.Errorf("error = %q", got)
		}
		if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("rate limit headers = %v", w.Header())
		}

		for _, path := range server.ExemptPaths {
			if w := Do(t, h, http.MethodGet, path, ""); w.Code != http.StatusOK {
				t.Errorf("GET %s status = %d, want 200", path, w.Code)
			}
		}
	})
}
