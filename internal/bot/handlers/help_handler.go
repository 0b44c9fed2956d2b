package handlers

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/config"
)

// NewHelpHandler returns a handler for /help.
func NewHelpHandler(deps HandlerDeps) HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

const helpText = `**Tasks**
/add_task, /remove_task, /edit_task manage the task list.
A reminder listing tomorrow's tasks is posted every day at noon.

**Deadline warnings** (in DMs with the bot)
/enable_warn and /disable_warn toggle a DM one hour before homework is due.

**Server managers**
/set_ping_channel, /set_ping_role and /set_log_channel configure the bot.
/stop_ping mutes reminders until a date; /resume_ping unmutes them.
/deploy_panel posts a panel for browsing tasks.`

func (h helpHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "help")
	log.InfoContext(ctx, "Handling /help command", "user_id", userID(i.Interaction))

	var status []string
	if id, ok := h.deps.Store.PingChannel(); ok {
		status = append(status, "Reminder channel: "+chat.ChannelMention(id))
	}
	if until := h.deps.Store.StopPingUntil(); until.After(h.deps.Clock.Now()) {
		status = append(status, "Muted until "+chat.Timestamp(until, "D"))
	}
	if h.deps.Loops != nil {
		if next, ok := h.deps.Loops.NextRun(config.TaskDailyReminder); ok {
			status = append(status, "Next reminder "+chat.Timestamp(next, "R"))
		}
	}

	embed := chat.Embed{Title: "Task bot", Description: helpText, Color: chat.ColorBlue}
	if len(status) > 0 {
		embed.Fields = []chat.Field{{Name: "Status", Value: strings.Join(status, "\n")}}
	}
	if err := reply(ctx, s, i.Interaction, ephemeral("", []chat.Embed{embed}, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to send help message", "error", err)
	}
}
