// Package memory provides the default in-memory user store.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aloks98/gousers/store"
)

// ErrClosed is returned by Ping after Close has been called.
var ErrClosed = errors.New("memory store is closed")

// Store is an in-memory implementation of the store.Store interface.
// A single mutex guards both the user list and the id counter, so ids
// stay unique and strictly increasing under concurrent requests.
type Store struct {
	mu sync.RWMutex

	users  []*store.User // insertion order
	lastID int64         // never decremented

	closed bool
}

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{}
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is available.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

// Create appends a new user with the next id.
func (s *Store) Create(ctx context.Context, name, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	u := &store.User{ID: s.lastID, Name: name, Email: email}
	s.users = append(s.users, u)

	return u.Clone(), nil
}

// Get retrieves a user by id.
func (s *Store) Get(ctx context.Context, id int64) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, store.ErrUserNotFound
	}
	return s.users[i].Clone(), nil
}

// Update replaces the stored record with a new one carrying the same id.
func (s *Store) Update(ctx context.Context, id int64, name, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, store.ErrUserNotFound
	}

	u := &store.User{ID: id, Name: name, Email: email}
	s.users[i] = u
	return u.Clone(), nil
}

// Delete removes a user without renumbering the others.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return store.ErrUserNotFound
	}

	copy(s.users[i:], s.users[i+1:])
	s.users[len(s.users)-1] = nil
	s.users = s.users[:len(s.users)-1]
	return nil
}

// List returns all users in insertion order.
func (s *Store) List(ctx context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u.Clone())
	}
	return result, nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// indexOf scans for id. Caller must hold s.mu.
func (s *Store) indexOf(id int64) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

var _ store.Store = (*Store)(nil)
