// Package app wires configuration, storage, rate limiting and the chosen
// router into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aloks98/gousers"
	"github.com/aloks98/gousers/internal/handlers"
	"github.com/aloks98/gousers/ratelimit"
	"github.com/aloks98/gousers/server"
	serverchi "github.com/aloks98/gousers/server/chi"
	serverecho "github.com/aloks98/gousers/server/echo"
	serverfiber "github.com/aloks98/gousers/server/fiber"
	servergin "github.com/aloks98/gousers/server/gin"
	"github.com/aloks98/gousers/server/nethttp"
	"github.com/aloks98/gousers/store"
	"github.com/aloks98/gousers/store/memory"
	redisstore "github.com/aloks98/gousers/store/redis"
	sqlstore "github.com/aloks98/gousers/store/sql"
)

// App is the main application container.
type App struct {
	Config  *Config
	Users   *gousers.Users
	Limiter ratelimit.Limiter
	Handler http.Handler

	// limiterClient is closed with the app when the limiter opened it.
	limiterClient *redis.Client
}

// routers maps framework names to router constructors.
var routers = map[string]func(h *handlers.Handler, opts server.Options) http.Handler{
	server.FrameworkChi:     serverchi.New,
	server.FrameworkEcho:    serverecho.New,
	server.FrameworkGin:     servergin.New,
	server.FrameworkFiber:   serverfiber.New,
	server.FrameworkNetHTTP: nethttp.New,
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	users, err := gousers.New(
		gousers.WithStore(st),
		gousers.WithAutoMigrate(cfg.AutoMigrate),
		gousers.WithStoreTimeout(time.Duration(cfg.StoreTimeout)),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	a := &App{Config: cfg, Users: users}

	if cfg.RateLimit.Enabled {
		a.Limiter = a.newLimiter(st)
	}

	newRouter := routers[cfg.Framework]
	a.Handler = newRouter(handlers.New(users, nil), server.Options{
		Limiter:   a.Limiter,
		AccessLog: cfg.AccessLog,
	})

	log.Printf("[gousers] %s router, %s backend", cfg.Framework, cfg.Backend)
	return a, nil
}

// NewStore opens the configured backend.
func NewStore(cfg *Config) (store.Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendRedis:
		return redisstore.New(&redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case BackendPostgres, BackendMySQL, BackendSQLite:
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(&sqlstore.Config{
			Dialect:     dialect,
			DSN:         cfg.DSN,
			TablePrefix: cfg.TablePrefix,
		})
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", gousers.ErrConfigInvalid, cfg.Backend)
	}
}

// newLimiter builds the configured limiter. The redis limiter shares the
// store's client when the store is Redis too.
func (a *App) newLimiter(st store.Store) ratelimit.Limiter {
	rl := a.Config.RateLimit
	if rl.Backend != BackendRedis {
		return ratelimit.NewMemoryLimiter(rl.Requests, time.Duration(rl.Window))
	}

	var client redis.Cmdable
	if rs, ok := st.(*redisstore.Store); ok {
		client = rs.Client()
	} else {
		a.limiterClient = redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		client = a.limiterClient
	}

	return ratelimit.NewRedisLimiter(&ratelimit.RedisConfig{
		Client:   client,
		Requests: rl.Requests,
		Window:   time.Duration(rl.Window),
	})
}

// Migrate runs the store's schema migration.
func (a *App) Migrate(ctx context.Context) error {
	return a.Users.Store().Migrate(ctx)
}

// Close releases the limiter and the store.
func (a *App) Close() error {
	var errs []error
	if a.Limiter != nil {
		errs = append(errs, a.Limiter.Close())
	}
	if a.limiterClient != nil {
		errs = append(errs, a.limiterClient.Close())
	}
	errs = append(errs, a.Users.Close())
	return errors.Join(errs...)
}
