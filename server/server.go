// Package server holds what the router packages share: options, the
// rate limit exemptions and the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aloks98/gousers/ratelimit"
)

// Framework names accepted by the framework setting.
const (
	FrameworkChi     = "chi"
	FrameworkEcho    = "echo"
	FrameworkGin     = "gin"
	FrameworkFiber   = "fiber"
	FrameworkNetHTTP = "http"
)

// Frameworks lists every router, default first.
var Frameworks = []string{FrameworkChi, FrameworkEcho, FrameworkGin, FrameworkFiber, FrameworkNetHTTP}

// ExemptPaths are never rate limited.
var ExemptPaths = []string{"/", "/healthz"}

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Options configures a router.
type Options struct {
	// Limiter enables rate limiting when set.
	Limiter ratelimit.Limiter

	// AccessLog enables the framework's request logger.
	AccessLog bool
}

// Serve runs handler on addr until ctx is done, then shuts down within
// shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ServeListener(ctx, ln, handler, shutdownTimeout)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("[server] listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[server] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
