package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"cropyield-platform/internal/config"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	migrationsDir := flag.String("migrations", "migrations", "Path to migration files")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.Database.User),
		url.QueryEscape(cfg.Database.Password),
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	absPath, err := filepath.Abs(*migrationsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve migrations path: %v\n", err)
		os.Exit(1)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", absPath), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrate instance: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	fmt.Printf("Running migrations %s from %s\n", *direction, absPath)

	switch *direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up or down\n", *direction)
		os.Exit(1)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to apply")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
