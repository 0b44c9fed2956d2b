package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context is
// cancelled when the scheduler shuts down.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every scheduled task keyed by the name used in the
// scheduler.tasks configuration section.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskDailyReminder:   newDailyReminderTask(deps),
		config.TaskDeadlineWarning: newDeadlineWarningTask(deps),
		config.TaskSQLMaintenance:  newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

// reportFailure posts a failed step to the log channel when one is set.
func reportFailure(ctx context.Context, deps TaskDeps, log *slog.Logger, step string, err error) {
	channelID, ok := deps.Store.LogChannel()
	if !ok {
		return
	}
	embed := chat.Embed{
		Title:       "Scheduled task failed",
		Description: fmt.Sprintf("**%s**: %v", step, err),
		Color:       chat.ColorRed,
		Timestamp:   deps.Clock.Now(),
	}
	if _, sendErr := deps.Gateway.Send(ctx, channelID, chat.OutgoingMessage{Embeds: []chat.Embed{embed}}); sendErr != nil {
		log.ErrorContext(ctx, "Failed to report task failure", "error", sendErr, "channel_id", channelID)
	}
}
