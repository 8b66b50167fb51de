// Command gousers serves the users API.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aloks98/gousers/internal/app"
	"github.com/aloks98/gousers/server"
)

// flags shared by serve and migrate.
type flags struct {
	config    string
	framework string
	backend   string
	dsn       string
	port      int
	testMode  bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "gousers",
		Short: "User CRUD HTTP service",
		Long: `gousers serves a JSON API for creating, reading, updating and deleting
users. Storage is in memory by default; Postgres, MySQL, SQLite and Redis
are selected with --backend.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&f.config, "config", "", "path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&f.backend, "backend", "", "storage backend (memory, postgres, mysql, sqlite, redis)")
	rootCmd.PersistentFlags().StringVar(&f.dsn, "dsn", "", "database connection string")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, f)
		},
	}
	serveCmd.Flags().StringVar(&f.framework, "framework", "", fmt.Sprintf("HTTP framework %v", server.Frameworks))
	serveCmd.Flags().IntVar(&f.port, "port", 0, "listen port")
	serveCmd.Flags().BoolVar(&f.testMode, "test-mode", false, "build the application without binding a port")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table for SQL backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, f)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command, f *flags) (*app.Config, error) {
	cfg, err := app.Load(f.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("framework") {
		cfg.Framework = f.framework
	}
	if changed("backend") {
		cfg.Backend = f.backend
	}
	if changed("dsn") {
		cfg.DSN = f.dsn
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("test-mode") {
		cfg.TestMode = f.testMode
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.TestMode {
		log.Printf("[gousers] test mode: not binding a port")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, cfg.Addr(), a.Handler, time.Duration(cfg.ShutdownTimeout))
}

func runMigrate(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	cfg.AutoMigrate = false

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Printf("[gousers] %s schema is up to date", cfg.Backend)
	return nil
}
