// Package gin serves the user API with Gin.
package gin

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/middleware"
	mwgin "github.com/aloks98/gousers/middleware/gin"
	"github.com/aloks98/gousers/server"
)

// ginContext implements handlers.Context for Gin.
type ginContext struct {
	c *gin.Context
}

func (g *ginContext) Context() context.Context {
	return g.c.Request.Context()
}

func (g *ginContext) Param(name string) string {
	return g.c.Param(name)
}

func (g *ginContext) Body() ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(g.c.Writer, g.c.Request.Body, handlers.MaxBodyBytes))
}

func (g *ginContext) JSON(status int, v any) error {
	g.c.JSON(status, v)
	return nil
}

func (g *ginContext) HTML(status int, html string) error {
	g.c.Data(status, "text/html; charset=utf-8", []byte(html))
	return nil
}

func (g *ginContext) NoContent(status int) error {
	g.c.Status(status)
	return nil
}

// New builds the Gin router.
func New(h *handlers.Handler, opts server.Options) http.Handler {
	r := gin.New()

	r.Use(mwgin.RequestID())
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if opts.Limiter != nil {
		r.Use(mwgin.RateLimit(opts.Limiter, server.ExemptPaths...))
	}

	r.GET("/", wrapHandler(h.Index))
	r.GET("/healthz", wrapHandler(h.Health))

	users := r.Group("/users")
	users.GET("", wrapHandler(h.ListUsers))
	users.POST("", wrapHandler(h.CreateUser))
	users.GET("/:id", wrapHandler(h.GetUser))
	users.PUT("/:id", wrapHandler(h.UpdateUser))
	users.DELETE("/:id", wrapHandler(h.DeleteUser))

	return r
}

func wrapHandler(fn func(c handlers.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(&ginContext{c: c}); err != nil {
			log.Printf("[server] request %s: handler error: %v", middleware.GetRequestID(c.Request.Context()), err)
			if !c.Writer.Written() {
				c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}
	}
}
