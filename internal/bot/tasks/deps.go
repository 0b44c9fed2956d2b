// Package tasks implements the bot's scheduled jobs and the registry the
// scheduler reads them from.
package tasks

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/backup"
	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/reminder"
	"github.com/edgard/taskbot/internal/resilience"
	"github.com/edgard/taskbot/internal/store"
	"github.com/edgard/taskbot/internal/warning"
)

// TaskDeps contains everything the scheduled tasks need.
type TaskDeps struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Store    *store.Store
	Gateway  chat.Gateway
	Reminder *reminder.Engine
	Warning  *warning.Engine
	Backup   *backup.Backup
	DB       *sqlx.DB
	Retry    resilience.RetryConfig
}
