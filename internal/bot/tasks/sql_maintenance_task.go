package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
)

// newSQLMaintenanceTask compacts the SQLite file that holds the store.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskSQLMaintenance)

	return func(ctx context.Context) error {
		if err := database.Maintain(ctx, deps.DB, log); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
		return nil
	}
}
