package gousers

import (
	"time"

	"github.com/aloks98/gousers/store"
)

// Option is a function that modifies the configuration.
type Option func(*Config)

// WithStore sets the user store. This is a required option.
func WithStore(s store.Store) Option {
	return func(c *Config) {
		c.store = s
	}
}

// WithAutoMigrate enables or disables schema migration on startup.
func WithAutoMigrate(enabled bool) Option {
	return func(c *Config) {
		c.AutoMigrate = enabled
	}
}

// WithStoreTimeout sets the deadline applied to each store call.
// Set to 0 to rely on the caller's context alone.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StoreTimeout = d
	}
}

// WithLogger sets the logger for service events.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}
