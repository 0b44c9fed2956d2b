package tasks

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/resilience"
)

// newDailyReminderTask posts tomorrow's tasks and then backs up the store.
// Each step is retried on its own so a failing backup never re-posts the
// reminder.
func newDailyReminderTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskDailyReminder)

	return func(ctx context.Context) error {
		now := deps.Clock.Now()
		var result *multierror.Error

		err := resilience.WithRetry(ctx, func(ctx context.Context) error {
			_, err := deps.Reminder.Ping(ctx, now)
			return err
		}, deps.Retry)
		if err != nil {
			log.ErrorContext(ctx, "Daily reminder failed", "error", err)
			reportFailure(ctx, deps, log, "daily reminder", err)
			result = multierror.Append(result, err)
		}

		err = resilience.WithRetry(ctx, func(ctx context.Context) error {
			return deps.Backup.Run(ctx, now)
		}, deps.Retry)
		if err != nil {
			log.ErrorContext(ctx, "Backup failed", "error", err)
			reportFailure(ctx, deps, log, "backup", err)
			result = multierror.Append(result, err)
		}

		return result.ErrorOrNil()
	}
}
