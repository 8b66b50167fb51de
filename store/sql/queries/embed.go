// Package queries embeds SQL query files for the SQL store.
package queries

import (
	"embed"
	"fmt"
	"strings"
)

// FS embeds the query files of every dialect, one directory per dialect.
//
//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var FS embed.FS

// Queries holds parsed SQL queries by name.
type Queries struct {
	Schema      string
	InsertUser  string
	SelectUser  string
	SelectUsers string
	UpdateUser  string
	DeleteUser  string
}

// LoadPostgres loads PostgreSQL queries from embedded files.
func LoadPostgres() (*Queries, error) {
	return Load("postgres")
}

// LoadMySQL loads MySQL queries from embedded files.
func LoadMySQL() (*Queries, error) {
	return Load("mysql")
}

// LoadSQLite loads SQLite queries from embedded files.
func LoadSQLite() (*Queries, error) {
	return Load("sqlite")
}

// Load reads schema.sql and users.sql from the given dialect directory.
func Load(dir string) (*Queries, error) {
	schema, err := FS.ReadFile(dir + "/schema.sql")
	if err != nil {
		return nil, err
	}

	users, err := FS.ReadFile(dir + "/users.sql")
	if err != nil {
		return nil, err
	}
	parsed := ParseNamed(string(users))

	q := &Queries{
		Schema:      string(schema),
		InsertUser:  parsed["InsertUser"],
		SelectUser:  parsed["SelectUser"],
		SelectUsers: parsed["SelectUsers"],
		UpdateUser:  parsed["UpdateUser"],
		DeleteUser:  parsed["DeleteUser"],
	}

	for name, query := range map[string]string{
		"InsertUser":  q.InsertUser,
		"SelectUser":  q.SelectUser,
		"SelectUsers": q.SelectUsers,
		"UpdateUser":  q.UpdateUser,
		"DeleteUser":  q.DeleteUser,
	} {
		if query == "" {
			return nil, fmt.Errorf("%s/users.sql: missing query %q", dir, name)
		}
	}

	return q, nil
}

// ParseNamed parses SQL content with "-- name:" comments into a map of
// query name to statement.
func ParseNamed(content string) map[string]string {
	result := make(map[string]string)

	for _, part := range strings.Split(content, "-- name:") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// First line is the query name, rest is the SQL
		lines := strings.SplitN(part, "\n", 2)
		if len(lines) < 2 {
			continue
		}

		name := strings.TrimSpace(lines[0])
		query := strings.TrimSpace(lines[1])
		if name != "" && query != "" {
			result[name] = query
		}
	}

	return result
}
