package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/task"
)

// maxSelectOptions is the platform limit for select menu options.
const maxSelectOptions = 25

// upcoming returns the tasks due at or after now, soonest first, capped to
// what fits in a select menu.
func upcoming(tasks []task.Task, now time.Time) []task.Task {
	var out []task.Task
	for _, t := range tasks {
		if !t.Datetime.Before(now) {
			out = append(out, t)
		}
	}
	task.SortByDatetime(out)
	if len(out) > maxSelectOptions {
		out = out[:maxSelectOptions]
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func taskMenu(customID string, tasks []task.Task, loc *time.Location) discordgo.SelectMenu {
	options := make([]discordgo.SelectMenuOption, 0, len(tasks))
	for idx, t := range tasks {
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(t.Heading(), 100),
			Value:       strconv.Itoa(idx),
			Description: t.Datetime.In(loc).Format("2006-01-02 15:04"),
		})
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID,
		Placeholder: "Task",
		Options:     options,
	}
}

// selectTask asks the user to pick one upcoming task. It returns the task
// and the interaction to answer, or ok=false when nothing was picked.
func selectTask(ctx context.Context, deps HandlerDeps, log *slog.Logger, s Session, i *discordgo.Interaction, title string) (t task.Task, last *discordgo.Interaction, ok bool) {
	tasks := upcoming(deps.Store.Tasks(), deps.Clock.Now())
	if len(tasks) == 0 {
		respondText(ctx, log, s, i, "There are no upcoming tasks.")
		return task.Task{}, nil, false
	}

	sess := deps.Sessions.Open(userID(i), session.InteractiveTimeout)
	defer sess.Close()

	embed := chat.Embed{Title: title, Description: "Choose a task.", Color: chat.ColorBlue}
	err := reply(ctx, s, i, ephemeral("", []chat.Embed{embed}, []discordgo.MessageComponent{
		row(taskMenu(sess.CustomID(actionSelect), tasks, deps.Location)),
		row(button("Cancel", discordgo.DangerButton, sess.CustomID(actionCancel))),
	}))
	if err != nil {
		log.ErrorContext(ctx, "Failed to show task selection", "error", err)
		return task.Task{}, nil, false
	}

	for {
		ev, err := sess.Next(ctx)
		if err != nil {
			endSession(ctx, log, s, i, msgTimedOut)
			return task.Task{}, nil, false
		}
		switch ev.Action {
		case actionCancel:
			if err := update(ctx, s, ev.Interaction, ephemeral(msgCancelled, nil, nil)); err != nil {
				log.ErrorContext(ctx, "Failed to acknowledge cancel", "error", err)
			}
			return task.Task{}, nil, false
		case actionSelect:
			idx, err := strconv.Atoi(first(ev.Values))
			if err != nil || idx < 0 || idx >= len(tasks) {
				respondText(ctx, log, s, ev.Interaction, msgExpired)
				continue
			}
			return tasks[idx], ev.Interaction, true
		default:
			respondText(ctx, log, s, ev.Interaction, msgExpired)
		}
	}
}
