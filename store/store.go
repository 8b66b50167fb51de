// Package store defines the storage interface for gousers.
package store

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when no user matches the requested id.
var ErrUserNotFound = errors.New("user not found")

// Store defines the interface for user persistence.
// All methods should be safe for concurrent use.
//
// Implementations assign ids from a monotonic counter starting at 1 and
// never reuse an id, including after deletion. List returns users in
// insertion order. Stores do not validate names or emails.
type Store interface {
	// Lifecycle methods

	// Close releases any resources held by the store.
	Close() error

	// Ping verifies the store connection is alive.
	Ping(ctx context.Context) error

	// Migrate creates or updates the database schema.
	Migrate(ctx context.Context) error

	// User methods

	// Create assigns the next id and appends a new user.
	Create(ctx context.Context, name, email string) (*User, error)

	// Get retrieves a user by id.
	// Returns ErrUserNotFound if no user has that id.
	Get(ctx context.Context, id int64) (*User, error)

	// Update replaces the name and email of an existing user, keeping its id.
	// Returns ErrUserNotFound if no user has that id.
	Update(ctx context.Context, id int64, name, email string) (*User, error)

	// Delete removes a user.
	// Returns ErrUserNotFound if no user has that id.
	Delete(ctx context.Context, id int64) error

	// List returns all users in insertion order.
	List(ctx context.Context) ([]*User, error)
}
