package config

import "time"

// Scheduled task names.
const (
	TaskDailyReminder   = "daily_reminder"
	TaskDeadlineWarning = "deadline_warning"
	TaskSQLMaintenance  = "sql_maintenance"
)

func defaults() map[string]any {
	return map[string]any{
		"log.level": "info",
		"log.json":  false,

		"discord.token":            "",
		"discord.guild_id":         "",
		"discord.request_timeout":  30 * time.Second,
		"discord.breaker_failures": 5,

		"storage.db_path":     "taskbot.db",
		"storage.key":         "data.json",
		"storage.legacy_file": "data.json",

		"schedule.timezone": "Local",

		"scheduler.tasks." + TaskDailyReminder + ".enabled":    true,
		"scheduler.tasks." + TaskDailyReminder + ".schedule":   "0 0 12 * * *",
		"scheduler.tasks." + TaskDeadlineWarning + ".enabled":  true,
		"scheduler.tasks." + TaskDeadlineWarning + ".schedule": "0 * * * * *",
		"scheduler.tasks." + TaskSQLMaintenance + ".enabled":   true,
		"scheduler.tasks." + TaskSQLMaintenance + ".schedule":  "0 30 4 * * 0",

		"scheduler.retry.max_attempts":     3,
		"scheduler.retry.initial_interval": 2 * time.Second,
		"scheduler.retry.max_interval":     time.Minute,
		"scheduler.retry.multiplier":       2.0,
		"scheduler.retry.random_factor":    0.1,

		"metrics.addr": "",
	}
}
