package tasks

import (
	"context"

	"github.com/edgard/taskbot/internal/config"
)

// newDeadlineWarningTask DMs subscribers about homework due in an hour. It is
// not retried: subscribers reached before a failure would be warned twice.
func newDeadlineWarningTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskDeadlineWarning)

	return func(ctx context.Context) error {
		if err := deps.Warning.Warn(ctx, deps.Clock.Now()); err != nil {
			log.ErrorContext(ctx, "Deadline warning failed", "error", err)
			reportFailure(ctx, deps, log, "deadline warning", err)
			return err
		}
		return nil
	}
}
