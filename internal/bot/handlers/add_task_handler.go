package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
)

// NewAddTaskHandler returns a handler for /add_task.
func NewAddTaskHandler(deps HandlerDeps) HandlerFunc {
	return addTaskHandler{deps}.Handle
}

type addTaskHandler struct {
	deps HandlerDeps
}

func (h addTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "add_task", "user_id", userID(i.Interaction))

	if _, ok := h.deps.Store.PingRole(); !ok {
		respondError(ctx, log, s, i.Interaction, apperrors.NewConfigMissingError("ping role"))
		return
	}

	t, last, ok := runTaskWizard(ctx, h.deps, log, s, i.Interaction, reply, "Add task", nil)
	if !ok {
		return
	}

	added, err := h.deps.Store.Insert(ctx, t)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save task", "error", err)
		if err := update(ctx, s, last, ephemeral("Failed to save the task. Please try again.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report save failure", "error", err)
		}
		return
	}
	if !added {
		if err := update(ctx, s, last, ephemeral("This task already exists.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report duplicate task", "error", err)
		}
		return
	}
	log.InfoContext(ctx, "Task added", "task", t.Heading(), "datetime", t.Datetime)

	change := changeEmbed("Task added", chat.ColorDarkGreen, chat.TaskField(t))
	if err := update(ctx, s, last, ephemeral("", []chat.Embed{change}, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to confirm task", "error", err)
	}
	logEvent(ctx, h.deps, log, i.Interaction, change)
	announceChange(ctx, h.deps, log, s, last, change)
}
