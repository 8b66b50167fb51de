package gousers

import (
	"fmt"
	"log"
	"time"

	"github.com/aloks98/gousers/store"
)

// Default configuration values.
const (
	DefaultStoreTimeout = 5 * time.Second
)

// Logger is the interface for logging service events.
type Logger interface {
	Printf(format string, v ...any)
}

// defaultLogger wraps the standard log package.
type defaultLogger struct{}

func (d *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[gousers] "+format, v...)
}

// Config holds all configuration for the Users service.
type Config struct {
	// AutoMigrate runs store.Migrate when the service is created.
	AutoMigrate bool

	// StoreTimeout bounds every store call.
	// Zero disables the per-call timeout; the caller's context still applies.
	StoreTimeout time.Duration

	// set through WithStore and WithLogger
	store  store.Store
	logger Logger
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		AutoMigrate:  false,
		StoreTimeout: DefaultStoreTimeout,
		logger:       &defaultLogger{},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StoreTimeout < 0 {
		return fmt.Errorf("%w: store timeout cannot be negative", ErrConfigInvalid)
	}
	if c.logger == nil {
		return fmt.Errorf("%w: logger cannot be nil", ErrConfigInvalid)
	}
	return nil
}
