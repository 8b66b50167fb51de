// Package echo serves the user API with Echo.
package echo

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/middleware"
	mwecho "github.com/aloks98/gousers/middleware/echo"
	"github.com/aloks98/gousers/server"
)

// echoContext implements handlers.Context for Echo.
type echoContext struct {
	c echo.Context
}

func (e *echoContext) Context() context.Context {
	return e.c.Request().Context()
}

func (e *echoContext) Param(name string) string {
	return e.c.Param(name)
}

func (e *echoContext) Body() ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(e.c.Response(), e.c.Request().Body, handlers.MaxBodyBytes))
}

func (e *echoContext) JSON(status int, v any) error {
	return e.c.JSON(status, v)
}

func (e *echoContext) HTML(status int, html string) error {
	return e.c.HTML(status, html)
}

func (e *echoContext) NoContent(status int) error {
	return e.c.NoContent(status)
}

// New builds the Echo router.
func New(h *handlers.Handler, opts server.Options) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(mwecho.RequestID())
	if opts.AccessLog {
		e.Use(echomw.Logger())
	}
	e.Use(echomw.Recover())
	if opts.Limiter != nil {
		e.Use(mwecho.RateLimit(opts.Limiter, server.ExemptPaths...))
	}

	e.GET("/", wrapHandler(h.Index))
	e.GET("/healthz", wrapHandler(h.Health))

	users := e.Group("/users")
	users.GET("", wrapHandler(h.ListUsers))
	users.POST("", wrapHandler(h.CreateUser))
	users.GET("/:id", wrapHandler(h.GetUser))
	users.PUT("/:id", wrapHandler(h.UpdateUser))
	users.DELETE("/:id", wrapHandler(h.DeleteUser))

	return e
}

func wrapHandler(fn func(c handlers.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := fn(&echoContext{c: c}); err != nil {
			log.Printf("[server] request %s: handler error: %v", middleware.GetRequestID(c.Request().Context()), err)
			if c.Response().Committed {
				return nil
			}
			return c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return nil
	}
}
