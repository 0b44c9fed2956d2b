package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Maintain compacts the database file and refreshes the query planner
// statistics. VACUUM cannot run inside a transaction.
func Maintain(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "database")

	start := time.Now()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		log.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	if _, err := db.ExecContext(ctx, "VACUUM;"); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("database maintenance (VACUUM) interrupted: %w", err)
		}
		return fmt.Errorf("database maintenance (VACUUM) failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return fmt.Errorf("database maintenance (ANALYZE) failed: %w", err)
	}

	log.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}
