// Package sql provides SQL database storage for gousers.
//
// PostgreSQL goes through pgx, MySQL through go-sql-driver/mysql and SQLite
// through the pure-Go modernc driver. Queries live in embedded .sql files,
// one directory per dialect.
package sql

import (
	"fmt"
	"strings"

	// Database drivers, registered as "pgx", "mysql" and "sqlite".
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/aloks98/gousers/store/sql/queries"
)

// Dialect represents a SQL database dialect.
type Dialect string

const (
	// PostgreSQL dialect.
	PostgreSQL Dialect = "postgres"
	// MySQL dialect.
	MySQL Dialect = "mysql"
	// SQLite dialect.
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a backend name to its dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return PostgreSQL, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect: %q", name)
	}
}

// Default table prefix used in SQL files.
const defaultTablePrefix = "gousers_"

// dialectQueries contains SQL queries for one dialect.
type dialectQueries struct {
	schema string

	insertUser  string
	selectUser  string
	selectUsers string
	updateUser  string
	deleteUser  string

	// returningID is true when insertUser ends in RETURNING id.
	// Otherwise the id comes from LastInsertId.
	returningID bool
}

// getDriverName returns the database/sql driver name for the dialect.
func getDriverName(d Dialect) string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "pgx"
	}
}

// getDialectQueries returns the queries for a dialect with the given table prefix.
func getDialectQueries(d Dialect, tablePrefix string) (*dialectQueries, error) {
	var (
		q   *queries.Queries
		err error
	)
	switch d {
	case MySQL:
		q, err = queries.LoadMySQL()
	case SQLite:
		q, err = queries.LoadSQLite()
	default:
		q, err = queries.LoadPostgres()
	}
	if err != nil {
		return nil, fmt.Errorf("load %s queries: %w", d, err)
	}

	dq := &dialectQueries{
		schema:      q.Schema,
		insertUser:  q.InsertUser,
		selectUser:  q.SelectUser,
		selectUsers: q.SelectUsers,
		updateUser:  q.UpdateUser,
		deleteUser:  q.DeleteUser,
		returningID: d != MySQL,
	}

	if tablePrefix != "" && tablePrefix != defaultTablePrefix {
		dq = applyTablePrefix(dq, tablePrefix)
	}
	return dq, nil
}

// applyTablePrefix replaces the default table prefix with a custom one in all queries.
func applyTablePrefix(dq *dialectQueries, prefix string) *dialectQueries {
	replace := func(s string) string {
		return strings.ReplaceAll(s, defaultTablePrefix, prefix)
	}

	return &dialectQueries{
		schema:      replace(dq.schema),
		insertUser:  replace(dq.insertUser),
		selectUser:  replace(dq.selectUser),
		selectUsers: replace(dq.selectUsers),
		updateUser:  replace(dq.updateUser),
		deleteUser:  replace(dq.deleteUser),
		returningID: dq.returningID,
	}
}
