package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
)

// NewEditTaskHandler returns a handler for /edit_task.
func NewEditTaskHandler(deps HandlerDeps) HandlerFunc {
	return editTaskHandler{deps}.Handle
}

type editTaskHandler struct {
	deps HandlerDeps
}

func (h editTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "edit_task", "user_id", userID(i.Interaction))

	if _, ok := h.deps.Store.PingRole(); !ok {
		respondError(ctx, log, s, i.Interaction, apperrors.NewConfigMissingError("ping role"))
		return
	}

	old, picked, ok := selectTask(ctx, h.deps, log, s, i.Interaction, "Edit task")
	if !ok {
		return
	}

	updated, last, ok := runTaskWizard(ctx, h.deps, log, s, picked, update, "Edit task", &old)
	if !ok {
		return
	}
	if updated.Equal(old) {
		if err := update(ctx, s, last, ephemeral("Nothing changed.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report unchanged task", "error", err)
		}
		return
	}

	replaced, err := h.deps.Store.Replace(ctx, old, updated)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save edited task", "error", err)
		if err := update(ctx, s, last, ephemeral("Failed to save the change. Please try again.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report save failure", "error", err)
		}
		return
	}
	if !replaced {
		if err := update(ctx, s, last, ephemeral("This task no longer exists.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report missing task", "error", err)
		}
		return
	}
	log.InfoContext(ctx, "Task edited", "from", old.Heading(), "to", updated.Heading())

	change := changeEmbed("Task edited", chat.ColorBlue,
		labeledTaskField("Before", old),
		labeledTaskField("After", updated),
	)
	if err := update(ctx, s, last, ephemeral("", []chat.Embed{change}, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to confirm edit", "error", err)
	}
	logEvent(ctx, h.deps, log, i.Interaction, change)
	announceChange(ctx, h.deps, log, s, last, change)
}
