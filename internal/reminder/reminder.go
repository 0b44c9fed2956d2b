// Package reminder implements the daily "tasks due tomorrow" notification and
// its idempotent update path.
//
// The daily post is never edited. When the tasks it covers change, the
// engine threads an update-reply under it carrying the new list. The newest
// update-reply is the post's current content, so repeating an update with no
// task change posts nothing.
package reminder

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/task"
)

const (
	Title            = "Task reminder"
	dueDescription   = "Here are tomorrow's tasks!"
	emptyDescription = "No tasks due tomorrow :tada:"
	updateSuffix     = "(update)"
	announceText     = "Tasks have changed, please check!"

	// historyLimit is how many recent messages are scanned for candidates.
	historyLimit = 50
	// candidateAge bounds how old a daily post may be to still be updated.
	candidateAge = 24 * time.Hour
)

// Source is the part of the store the engine reads.
type Source interface {
	Tasks() []task.Task
	PingChannel() (string, bool)
	PingRole() (string, bool)
	StopPingUntil() time.Time
}

type Engine struct {
	src     Source
	gw      chat.Gateway
	loc     *time.Location
	logger  *slog.Logger
	metrics metrics.Recorder
}

func New(src Source, gw chat.Gateway, loc *time.Location, logger *slog.Logger, rec metrics.Recorder) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		src:     src,
		gw:      gw,
		loc:     loc,
		logger:  logger.With("component", "reminder"),
		metrics: metrics.OrNoOp(rec),
	}
}

// TomorrowWindow returns midnight of the day after now and midnight of the
// day after that, in loc.
func TomorrowWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	y, m, d := now.In(loc).Date()
	from = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	to = time.Date(y, m, d+2, 0, 0, 0, 0, loc)
	return from, to
}

// DueTomorrow returns the tasks with from < datetime <= to for now's
// tomorrow window, sorted by datetime. A task due exactly at midnight belongs
// to the day that ends there.
func DueTomorrow(tasks []task.Task, now time.Time, loc *time.Location) []task.Task {
	from, to := TomorrowWindow(now, loc)
	var due []task.Task
	for _, t := range tasks {
		if t.Datetime.After(from) && !t.Datetime.After(to) {
			due = append(due, t)
		}
	}
	task.SortByDatetime(due)
	return due
}

// Render builds the reminder embed for the given tasks.
func Render(tasks []task.Task) chat.Embed {
	if len(tasks) == 0 {
		return chat.Embed{
			Title:       Title,
			Description: emptyDescription,
			Color:       chat.ColorDarkGreen,
		}
	}
	return chat.Embed{
		Title:       Title,
		Description: dueDescription,
		Color:       chat.ColorRed,
		Fields:      chat.TaskFields(tasks),
	}
}

// Ping posts the daily reminder for now. It sends nothing and returns nil
// while reminders are muted.
func (e *Engine) Ping(ctx context.Context, now time.Time) (*chat.Message, error) {
	channelID, ok := e.src.PingChannel()
	if !ok {
		return nil, apperrors.NewConfigMissingError("ping channel")
	}
	if until := e.src.StopPingUntil(); until.After(now) {
		e.logger.InfoContext(ctx, "Reminders muted, skipping daily ping", "until", until)
		return nil, nil
	}

	from, to := TomorrowWindow(now, e.loc)
	e.logger.InfoContext(ctx, "Searching tasks", "from", from, "to", to)

	due := DueTomorrow(e.src.Tasks(), now, e.loc)
	msg := chat.OutgoingMessage{Embeds: []chat.Embed{Render(due)}}
	if len(due) > 0 {
		roleID, ok := e.src.PingRole()
		if !ok {
			return nil, apperrors.NewConfigMissingError("ping role")
		}
		msg.Content = chat.RoleMention(roleID)
	}

	sent, err := e.gw.Send(ctx, channelID, msg)
	if err != nil {
		return nil, apperrors.NewPlatformError("failed to send reminder", err)
	}
	e.metrics.ReminderSent()
	e.logger.InfoContext(ctx, "Daily reminder sent", "channel_id", channelID, "tasks", len(due))
	return sent, nil
}

// Candidate is a daily post whose content no longer matches the tasks it
// should list.
type Candidate struct {
	Message  chat.Message
	Current  chat.Embed
	Expected chat.Embed
}

// UpdateOptions controls how an update-reply is posted.
type UpdateOptions struct {
	// Announce notifies the ping role. Without it the mention is rendered
	// but suppressed.
	Announce bool
	// Extra embeds follow the reminder embed, e.g. the change that caused
	// the update.
	Extra []chat.Embed
}

// Stale scans the ping channel for the newest daily post from the last 24
// hours whose current content differs from what it should list now.
// It returns nil when every candidate is up to date.
func (e *Engine) Stale(ctx context.Context, now time.Time) (*Candidate, error) {
	channelID, ok := e.src.PingChannel()
	if !ok {
		return nil, apperrors.NewConfigMissingError("ping channel")
	}

	history, err := e.gw.RecentMessages(ctx, channelID, historyLimit)
	if err != nil {
		return nil, apperrors.NewPlatformError("failed to read channel history", err)
	}
	slices.SortStableFunc(history, func(a, b chat.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	botID := e.gw.BotUserID()
	latestReply := make(map[string]chat.Message)
	var candidates []chat.Message
	for _, m := range history {
		if m.AuthorID != botID || !isReminder(m) {
			continue
		}
		if m.IsReply() {
			if _, seen := latestReply[m.ReplyTo]; !seen {
				latestReply[m.ReplyTo] = m
			}
			continue
		}
		if now.Sub(m.CreatedAt) <= candidateAge {
			candidates = append(candidates, m)
		}
	}

	tasks := e.src.Tasks()
	for _, c := range candidates {
		current := c.Embeds[0]
		if reply, ok := latestReply[c.ID]; ok {
			current = reply.Embeds[0]
		}
		expected := Render(DueTomorrow(tasks, c.CreatedAt, e.loc))

		if !expected.Equal(current) {
			e.logger.InfoContext(ctx, "Reminder is stale", "message_id", c.ID, "created_at", c.CreatedAt)
			return &Candidate{Message: c, Current: current, Expected: expected}, nil
		}
		e.logger.DebugContext(ctx, "No changes, update not needed", "message_id", c.ID, "created_at", c.CreatedAt)
	}
	return nil, nil
}

// PostUpdate threads an update-reply under the candidate.
func (e *Engine) PostUpdate(ctx context.Context, c *Candidate, opts UpdateOptions) (*chat.Message, error) {
	content := updateSuffix
	if roleID, ok := e.src.PingRole(); ok {
		content = chat.RoleMention(roleID) + " " + updateSuffix
	}

	msg := chat.OutgoingMessage{
		Content:          content,
		Embeds:           append([]chat.Embed{c.Expected}, opts.Extra...),
		ReplyTo:          c.Message.ID,
		SuppressMentions: !opts.Announce,
	}
	sent, err := e.gw.Send(ctx, c.Message.ChannelID, msg)
	if err != nil {
		return nil, apperrors.NewPlatformError("failed to post update-reply", err)
	}
	e.metrics.UpdateReplyPosted()
	e.logger.InfoContext(ctx, "Update-reply posted",
		"reply_to", c.Message.ID, "message_id", sent.ID, "announce", opts.Announce)
	return sent, nil
}

// Update posts an update-reply for the newest stale daily post, if any.
// It returns nil when nothing needed updating.
func (e *Engine) Update(ctx context.Context, now time.Time, opts UpdateOptions) (*chat.Message, error) {
	c, err := e.Stale(ctx, now)
	if err != nil || c == nil {
		return nil, err
	}
	return e.PostUpdate(ctx, c, opts)
}

// Announce replies to an update-reply with a role mention so the change
// reaches the ping role.
func (e *Engine) Announce(ctx context.Context, reply *chat.Message, change chat.Embed) (*chat.Message, error) {
	roleID, ok := e.src.PingRole()
	if !ok {
		return nil, apperrors.NewConfigMissingError("ping role")
	}
	sent, err := e.gw.Send(ctx, reply.ChannelID, chat.OutgoingMessage{
		Content: chat.RoleMention(roleID) + " " + announceText,
		Embeds:  []chat.Embed{change},
		ReplyTo: reply.ID,
	})
	if err != nil {
		return nil, apperrors.NewPlatformError("failed to announce change", err)
	}
	e.logger.InfoContext(ctx, "Change announced", "reply_to", reply.ID, "message_id", sent.ID)
	return sent, nil
}

func isReminder(m chat.Message) bool {
	return len(m.Embeds) > 0 && m.Embeds[0].Title == Title
}
