// Package nethttp serves the user API with the standard library router.
package nethttp

import (
	"log"
	"net/http"

	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/middleware"
	"github.com/aloks98/gousers/ratelimit"
	"github.com/aloks98/gousers/server"
)

// New builds the ServeMux router wrapped in the shared middleware.
func New(h *handlers.Handler, opts server.Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", wrapHandler(h.Index))
	mux.HandleFunc("GET /healthz", wrapHandler(h.Health))
	mux.HandleFunc("GET /users", wrapHandler(h.ListUsers))
	mux.HandleFunc("POST /users", wrapHandler(h.CreateUser))
	mux.HandleFunc("GET /users/{id}", wrapHandler(h.GetUser))
	mux.HandleFunc("PUT /users/{id}", wrapHandler(h.UpdateUser))
	mux.HandleFunc("DELETE /users/{id}", wrapHandler(h.DeleteUser))

	var handler http.Handler = mux
	if opts.Limiter != nil {
		handler = ratelimit.Middleware(opts.Limiter, &ratelimit.Config{
			KeyFunc:  ratelimit.GetClientIP,
			SkipFunc: middleware.SkipPaths(server.ExemptPaths...),
		})(handler)
	}
	handler = middleware.Recover(handler)
	if opts.AccessLog {
		handler = middleware.AccessLog(nil)(handler)
	}
	return middleware.RequestID(handler)
}

func pathValue(r *http.Request, name string) string {
	return r.PathValue(name)
}

func wrapHandler(fn func(c handlers.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(handlers.NewHTTPContext(w, r, pathValue)); err != nil {
			log.Printf("[server] request %s: handler error: %v", middleware.GetRequestID(r.Context()), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
