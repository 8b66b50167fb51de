package sql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aloks98/gousers/store"
)

// Store implements store.Store using a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	queries *dialectQueries
}

// Config holds SQL store configuration.
type Config struct {
	// Dialect specifies the database type (postgres, mysql, sqlite).
	Dialect Dialect

	// DB is an existing database connection.
	// If provided, DSN is ignored.
	DB *sql.DB

	// DSN is the data source name for connecting to the database.
	DSN string

	// TablePrefix is the prefix for all table names.
	// Defaults to "gousers_" if empty.
	// Example: "myapp_" creates the table "myapp_users".
	TablePrefix string

	// MaxOpenConns sets the maximum number of open connections.
	// SQLite defaults to 1 so an in-memory database is shared by all callers.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration
}

// New creates a new SQL store. It does not connect; use Ping to verify.
func New(cfg *Config) (*Store, error) {
	dq, err := getDialectQueries(cfg.Dialect, cfg.TablePrefix)
	if err != nil {
		return nil, err
	}

	driverName := getDriverName(cfg.Dialect)

	var db *sqlx.DB
	if cfg.DB != nil {
		db = sqlx.NewDb(cfg.DB, driverName)
	} else {
		db, err = sqlx.Open(driverName, cfg.DSN)
		if err != nil {
			return nil, err
		}

		maxOpen := cfg.MaxOpenConns
		if maxOpen == 0 && cfg.Dialect == SQLite {
			maxOpen = 1
		}
		if maxOpen > 0 {
			db.SetMaxOpenConns(maxOpen)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	return &Store{
		db:      db,
		dialect: cfg.Dialect,
		queries: dq,
	}, nil
}

// Dialect returns the dialect this store was built for.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	// Split schema by semicolon for multiple statements
	for _, stmt := range strings.Split(s.queries.schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a user and returns it with its database-assigned id.
func (s *Store) Create(ctx context.Context, name, email string) (*store.User, error) {
	var id int64

	if s.queries.returningID {
		if err := s.db.QueryRowxContext(ctx, s.queries.insertUser, name, email).Scan(&id); err != nil {
			return nil, err
		}
	} else {
		result, err := s.db.ExecContext(ctx, s.queries.insertUser, name, email)
		if err != nil {
			return nil, err
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, err
		}
	}

	return &store.User{ID: id, Name: name, Email: email}, nil
}

// Get retrieves a user by id.
func (s *Store) Get(ctx context.Context, id int64) (*store.User, error) {
	var u store.User
	err := s.db.GetContext(ctx, &u, s.queries.selectUser, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update replaces name and email inside a transaction.
// The existence check runs in the same transaction because MySQL reports
// zero affected rows when the new values equal the old ones.
func (s *Store) Update(ctx context.Context, id int64, name, email string) (*store.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var existing store.User
	err = tx.GetContext(ctx, &existing, s.queries.selectUser, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, s.queries.updateUser, name, email, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &store.User{ID: id, Name: name, Email: email}, nil
}

// Delete removes a user by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.queries.deleteUser, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by id, which is insertion order.
func (s *Store) List(ctx context.Context) ([]*store.User, error) {
	users := []*store.User{}
	if err := s.db.SelectContext(ctx, &users, s.queries.selectUsers); err != nil {
		return nil, err
	}
	return users, nil
}

var _ store.Store = (*Store)(nil)
