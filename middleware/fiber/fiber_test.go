package fiber

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
)

func TestFiberRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/users", func(c *fiber.Ctx) error {
		id := RequestIDFrom(c)
		if id != "fiber-1" {
			t.Errorf("RequestIDFrom() = %q, want fiber-1", id)
		}
		if got := middleware.GetRequestID(c.UserContext()); got != id {
			t.Errorf("user context id = %q, want %q", got, id)
		}
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(middleware.RequestIDHeader, "fiber-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get(middleware.RequestIDHeader) != "fiber-1" {
		t.Errorf("response id = %q", resp.Header.Get(middleware.RequestIDHeader))
	}
}

func TestFiberRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute)
	defer limiter.Close()

	app := fiber.New()
	app.Use(RateLimit(limiter, "/healthz"))
	app.Get("/users", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	tests := []struct {
		path string
		want int
	}{
		{"/users", http.StatusOK},
		{"/users", http.StatusTooManyRequests},
		{"/healthz", http.StatusOK},
	}

	for i, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
		if err != nil {
			t.Fatalf("request %d: app.Test() error = %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("request %d %s: status = %d, want %d", i+1, tt.path, resp.StatusCode, tt.want)
		}
	}
}
