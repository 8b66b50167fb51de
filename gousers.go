// Package gousers provides a small user directory service backed by a
// pluggable store.
//
// Basic usage:
//
//	svc, err := gousers.New(
//	    gousers.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	u, err := svc.Create(ctx, gousers.UserInput{Name: "John Doe", Email: "john@example.com"})
package gousers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aloks98/gousers/store"
)

// Users is the main service. It validates input and maps store failures
// onto the error codes in errors.go.
type Users struct {
	config *Config
	store  store.Store
	logger Logger

	closed bool
	mu     sync.RWMutex
}

// New creates a new Users service with the given options.
func New(opts ...Option) (*Users, error) {
	cfg := NewConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.store == nil {
		return nil, ErrStoreRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u := &Users{
		config: cfg,
		store:  cfg.store,
		logger: cfg.logger,
	}

	if cfg.AutoMigrate {
		ctx := context.Background()
		if err := u.do(ctx, "migrate", func(ctx context.Context) error {
			return u.store.Migrate(ctx)
		}); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return u, nil
}

// Create validates in and stores a new user with the next id.
func (u *Users) Create(ctx context.Context, in UserInput) (*store.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *store.User
	err := u.do(ctx, "create", func(ctx context.Context) error {
		var err error
		created, err = u.store.Create(ctx, in.Name, in.Email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the user with the given id.
func (u *Users) Get(ctx context.Context, id int64) (*store.User, error) {
	var found *store.User
	err := u.do(ctx, "get", func(ctx context.Context) error {
		var err error
		found, err = u.store.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, u.notFound(err, id)
	}
	return found, nil
}

// Update replaces the name and email of an existing user.
// A missing user is reported before any validation failure.
func (u *Users) Update(ctx context.Context, id int64, in UserInput) (*store.User, error) {
	if _, err := u.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *store.User
	err := u.do(ctx, "update", func(ctx context.Context) error {
		var err error
		updated, err = u.store.Update(ctx, id, in.Name, in.Email)
		return err
	})
	if err != nil {
		return nil, u.notFound(err, id)
	}
	return updated, nil
}

// Delete removes the user with the given id.
func (u *Users) Delete(ctx context.Context, id int64) error {
	err := u.do(ctx, "delete", func(ctx context.Context) error {
		return u.store.Delete(ctx, id)
	})
	return u.notFound(err, id)
}

// List returns every user in creation order.
func (u *Users) List(ctx context.Context) ([]*store.User, error) {
	var users []*store.User
	err := u.do(ctx, "list", func(ctx context.Context) error {
		var err error
		users, err = u.store.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*store.User{}
	}
	return users, nil
}

// Ping checks that the store is reachable.
func (u *Users) Ping(ctx context.Context) error {
	return u.do(ctx, "ping", func(ctx context.Context) error {
		return u.store.Ping(ctx)
	})
}

// Close releases resources. Safe to call more than once.
func (u *Users) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true

	return u.store.Close()
}

// Store returns the underlying store.
func (u *Users) Store() store.Store {
	return u.store
}

// Config returns a copy of the configuration.
func (u *Users) Config() Config {
	return *u.config
}

// do runs fn under the configured store timeout and wraps failures.
// Not-found errors pass through untouched so callers can attach the id.
func (u *Users) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if u.config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.config.StoreTimeout)
		defer cancel()
	}

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUserNotFound):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		u.logger.Printf("store %s timed out: %v", op, err)
		return NewError(CodeStoreTimeout, op, fmt.Errorf("%w: %w", ErrStoreTimeout, err))
	default:
		u.logger.Printf("store %s failed: %v", op, err)
		return NewError(CodeStoreUnavailable, op, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
}

func (u *Users) notFound(err error, id int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUserNotFound) {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return NewNotFoundError(id)
	}
	return err
}
