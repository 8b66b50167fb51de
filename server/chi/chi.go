// Package chi serves the user API with go-chi.
package chi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/middleware"
	mwchi "github.com/aloks98/gousers/middleware/chi"
	"github.com/aloks98/gousers/server"
)

// New builds the chi router.
func New(h *handlers.Handler, opts server.Options) http.Handler {
	r := chi.NewRouter()

	r.Use(mwchi.RequestID)
	if opts.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if opts.Limiter != nil {
		r.Use(mwchi.RateLimit(opts.Limiter, server.ExemptPaths...))
	}

	r.Get("/", wrapHandler(h.Index))
	r.Get("/healthz", wrapHandler(h.Health))

	r.Route("/users", func(r chi.Router) {
		r.Get("/", wrapHandler(h.ListUsers))
		r.Post("/", wrapHandler(h.CreateUser))
		r.Get("/{id}", wrapHandler(h.GetUser))
		r.Put("/{id}", wrapHandler(h.UpdateUser))
		r.Delete("/{id}", wrapHandler(h.DeleteUser))
	})

	return r
}

func wrapHandler(fn func(c handlers.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(handlers.NewHTTPContext(w, r, chi.URLParam)); err != nil {
			log.Printf("[server] request %s: handler error: %v", middleware.GetRequestID(r.Context()), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
