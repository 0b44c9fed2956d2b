// Package warning sends direct-message warnings to subscribed users one hour
// before homework is due.
package warning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/task"
)

const (
	Title = "Homework deadline approaching"
	Lead  = time.Hour
)

// Source is the part of the store the engine reads.
type Source interface {
	Tasks() []task.Task
	WarnUsers() []string
}

type Engine struct {
	src     Source
	gw      chat.Gateway
	logger  *slog.Logger
	metrics metrics.Recorder
}

func New(src Source, gw chat.Gateway, logger *slog.Logger, rec metrics.Recorder) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		src:     src,
		gw:      gw,
		logger:  logger.With("component", "warning"),
		metrics: metrics.OrNoOp(rec),
	}
}

// Window returns the one-minute window starting at now+1h rounded down to
// the minute.
func Window(now time.Time) (from, to time.Time) {
	from = now.Add(Lead).Truncate(time.Minute)
	return from, from.Add(time.Minute)
}

// Approaching returns the homework tasks with from <= datetime < to, sorted
// by datetime. A window skipped by a late wake-up is never revisited.
func Approaching(tasks []task.Task, now time.Time) []task.Task {
	from, to := Window(now)
	var hits []task.Task
	for _, t := range tasks {
		if t.Category != task.Homework {
			continue
		}
		if !t.Datetime.Before(from) && t.Datetime.Before(to) {
			hits = append(hits, t)
		}
	}
	task.SortByDatetime(hits)
	return hits
}

// Render builds the warning embed.
func Render(tasks []task.Task) chat.Embed {
	return chat.Embed{
		Title:       Title,
		Description: "Due in one hour:",
		Color:       chat.ColorRed,
		Fields:      chat.TaskFields(tasks),
	}
}

// Warn DMs every subscriber about the homework due in now's window. A
// failed delivery does not stop the others; all failures are returned
// together.
func (e *Engine) Warn(ctx context.Context, now time.Time) error {
	hits := Approaching(e.src.Tasks(), now)
	if len(hits) == 0 {
		return nil
	}

	users := e.src.WarnUsers()
	msg := chat.OutgoingMessage{Embeds: []chat.Embed{Render(hits)}}

	var result *multierror.Error
	delivered := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		if _, err := e.gw.DirectMessage(ctx, userID, msg); err != nil {
			e.metrics.WarningFailed()
			e.logger.ErrorContext(ctx, "Failed to send deadline warning", "user_id", userID, "error", err)
			result = multierror.Append(result, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		delivered++
	}
	e.metrics.WarningSent(delivered)
	e.logger.InfoContext(ctx, "Deadline warnings sent",
		"tasks", len(hits), "recipients", delivered, "subscribers", len(users))

	if err := result.ErrorOrNil(); err != nil {
		return apperrors.NewPlatformError("failed to warn some subscribers", err)
	}
	return nil
}
