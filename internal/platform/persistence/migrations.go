package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// ErrDirtySchema is returned when a previous migration failed halfway and the
// schema needs manual repair before the ledger can write to it
var ErrDirtySchema = errors.New("schema is dirty")

// RunMigrations brings the ledger schema up to the newest version found under
// migrationsPath (a directory, with or without the file:// scheme)
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	sourceURL, err := migrationSource(databaseURL, migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Failed to release migration handles", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Schema already up to date")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if version, _, err := m.Version(); err == nil {
		logger.Info("Schema migrated", "version", version, "source", sourceURL)
	}
	return nil
}

func migrationSource(databaseURL, migrationsPath string) (string, error) {
	if migrationsPath == "" {
		return "", errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return "", errors.New("database URL cannot be empty")
	}
	return "file://" + strings.TrimPrefix(migrationsPath, "file://"), nil
}
