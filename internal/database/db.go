// Package database provides the SQLite connection, schema migrations, and the
// blob store that persists the bot's state.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const memory = ":memory:"

// Open opens the state database at dsn, creating the file's directory when
// it does not exist, and migrates the schema to the latest version.
func Open(dsn string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "database")

	file := FilePath(dsn)
	if file == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(file); file != memory && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
		}
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single connection serializes writers and keeps per-connection
	// pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		log.Warn("Failed to set busy timeout", "error", err)
	}

	version, err := migrateUp(db.DB, file, log)
	if err != nil {
		Close(db, log)
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("Database ready", "path", file, "schema_version", version)
	return db, nil
}

// Close closes the connection pool, logging any error.
func Close(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
		return
	}
	logger.Debug("Database connection closed")
}

// migrateUp applies the embedded migrations and returns the resulting
// schema version.
func migrateUp(db *sql.DB, name string, log *slog.Logger) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: name})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLogger{log}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// migrateLogger routes golang-migrate's progress lines to slog at debug level.
type migrateLogger struct {
	log *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "library", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return false
}

// FilePath returns the file a SQLite DSN points at, without the "file:"
// scheme and query parameters. The result names the database to the
// migration driver and decides which directory Open creates.
func FilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
