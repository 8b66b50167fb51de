package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aloks98/gousers"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServe_TestMode(t *testing.T) {
	if err := execute(t, "serve", "--test-mode"); err != nil {
		t.Fatalf("serve --test-mode error = %v", err)
	}
}

func TestServe_TestModeFromEnv(t *testing.T) {
	t.Setenv("GOUSERS_TEST_MODE", "true")

	if err := execute(t, "serve", "--framework", "echo"); err != nil {
		t.Fatalf("serve error = %v", err)
	}
}

func TestServe_InvalidFramework(t *testing.T) {
	err := execute(t, "serve", "--test-mode", "--framework", "martini")
	if !errors.Is(err, gousers.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestServe_FlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, "gousers.yaml", "framework: martini\nport: 4000\n")

	if err := execute(t, "serve", "--config", path, "--test-mode"); !errors.Is(err, gousers.ErrConfigInvalid) {
		t.Fatalf("file framework: error = %v, want ErrConfigInvalid", err)
	}
	if err := execute(t, "serve", "--config", path, "--test-mode", "--framework", "gin"); err != nil {
		t.Fatalf("flag framework: error = %v", err)
	}
}

func TestServe_MissingConfigFile(t *testing.T) {
	err := execute(t, "serve", "--test-mode", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestMigrate_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "users.db")

	if err := execute(t, "migrate", "--backend", "sqlite", "--dsn", dsn); err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if _, err := os.Stat(dsn); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	// running it again is harmless
	if err := execute(t, "migrate", "--backend", "sqlite", "--dsn", dsn); err != nil {
		t.Fatalf("second migrate error = %v", err)
	}
}

func TestMigrate_Memory(t *testing.T) {
	if err := execute(t, "migrate"); err != nil {
		t.Fatalf("migrate error = %v", err)
	}
}

func TestMigrate_UnknownBackend(t *testing.T) {
	if err := execute(t, "migrate", "--backend", "couchdb"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
