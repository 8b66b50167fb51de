// Package fiber serves the user API with Fiber, exposed to net/http through
// Fiber's adaptor.
package fiber

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/middleware"
	mwfiber "github.com/aloks98/gousers/middleware/fiber"
	"github.com/aloks98/gousers/server"
)

// fiberContext implements handlers.Context for Fiber.
type fiberContext struct {
	c *fiber.Ctx
}

func (f *fiberContext) Context() context.Context {
	return f.c.UserContext()
}

func (f *fiberContext) Param(name string) string {
	return f.c.Params(name)
}

// Body copies the request body; Fiber reuses its buffer after the handler returns.
func (f *fiberContext) Body() ([]byte, error) {
	body := f.c.Body()
	if len(body) > handlers.MaxBodyBytes {
		return nil, gousers.NewError(gousers.CodeInvalidBody, gousers.MessageInvalidBody, gousers.ErrInvalidBody)
	}
	return append([]byte(nil), body...), nil
}

func (f *fiberContext) JSON(status int, v any) error {
	return f.c.Status(status).JSON(v)
}

func (f *fiberContext) HTML(status int, html string) error {
	f.c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return f.c.Status(status).SendString(html)
}

func (f *fiberContext) NoContent(status int) error {
	f.c.Status(status)
	return nil
}

// NewApp builds the Fiber application. Handlers run before the request id
// middleware, in order.
func NewApp(h *handlers.Handler, opts server.Options, before ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             handlers.MaxBodyBytes,
		ErrorHandler:          errorHandler,
	})

	for _, fn := range before {
		app.Use(fn)
	}
	app.Use(mwfiber.RequestID())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	if opts.Limiter != nil {
		app.Use(mwfiber.RateLimit(opts.Limiter, server.ExemptPaths...))
	}

	app.Get("/", wrapHandler(h.Index))
	app.Get("/healthz", wrapHandler(h.Health))

	users := app.Group("/users")
	users.Get("", wrapHandler(h.ListUsers))
	users.Post("", wrapHandler(h.CreateUser))
	users.Get("/:id", wrapHandler(h.GetUser))
	users.Put("/:id", wrapHandler(h.UpdateUser))
	users.Delete("/:id", wrapHandler(h.DeleteUser))

	return app
}

// New builds the Fiber application as an http.Handler.
func New(h *handlers.Handler, opts server.Options) http.Handler {
	b := &bridge{}
	b.app = adaptor.FiberApp(NewApp(h, opts, b.requestContext))
	return b
}

// bridgeHeader carries the bridge token from net/http into Fiber.
const bridgeHeader = "X-Gousers-Bridge"

// bridge serves a Fiber app on net/http. The adaptor starts every Fiber
// context from context.Background and buffers the whole body, so the
// bridge caps the body and hands the request context over by token.
type bridge struct {
	app      http.Handler
	seq      atomic.Uint64
	contexts sync.Map // token -> context.Context
}

func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strconv.FormatUint(b.seq.Add(1), 10)
	b.contexts.Store(token, r.Context())
	defer b.contexts.Delete(token)

	r = r.Clone(r.Context())
	r.Header.Set(bridgeHeader, token)
	if r.Body != nil {
		// one byte over the limit is enough for Body to reject it
		r.Body = io.NopCloser(io.LimitReader(r.Body, handlers.MaxBodyBytes+1))
	}

	b.app.ServeHTTP(w, r)
}

// requestContext seeds the Fiber user context with the net/http request
// context registered under the bridge token.
func (b *bridge) requestContext(c *fiber.Ctx) error {
	token := c.Get(bridgeHeader)
	c.Request().Header.Del(bridgeHeader)

	if ctx, ok := b.contexts.Load(token); ok {
		c.SetUserContext(ctx.(context.Context))
	}
	return c.Next()
}

func wrapHandler(fn func(c handlers.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := fn(&fiberContext{c: c}); err != nil {
			log.Printf("[server] request %s: handler error: %v", middleware.GetRequestID(c.UserContext()), err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return nil
	}
}

// errorHandler renders Fiber's own errors (unknown route, body too large,
// recovered panics) in the API's error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == fiber.StatusRequestEntityTooLarge:
			return c.Status(fiber.StatusBadRequest).JSON(map[string]string{"error": gousers.MessageInvalidBody})
		case fe.Code >= fiber.StatusInternalServerError:
			return c.Status(fe.Code).JSON(map[string]string{"error": gousers.MessageInternal})
		}
		return c.Status(fe.Code).JSON(map[string]string{"error": fe.Message})
	}
	log.Printf("[server] request %s: %v", middleware.GetRequestID(c.UserContext()), err)
	return c.Status(fiber.StatusInternalServerError).JSON(map[string]string{"error": gousers.MessageInternal})
}
