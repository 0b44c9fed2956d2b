package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/session"
)

// NewRemoveTaskHandler returns a handler for /remove_task.
func NewRemoveTaskHandler(deps HandlerDeps) HandlerFunc {
	return removeTaskHandler{deps}.Handle
}

type removeTaskHandler struct {
	deps HandlerDeps
}

func (h removeTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "remove_task", "user_id", userID(i.Interaction))

	if _, ok := h.deps.Store.PingRole(); !ok {
		respondError(ctx, log, s, i.Interaction, apperrors.NewConfigMissingError("ping role"))
		return
	}

	t, picked, ok := selectTask(ctx, h.deps, log, s, i.Interaction, "Remove task")
	if !ok {
		return
	}

	sess := h.deps.Sessions.Open(userID(i.Interaction), session.InteractiveTimeout)
	defer sess.Close()

	confirm := chat.Embed{
		Title:       "Remove task",
		Description: "Remove this task?",
		Color:       chat.ColorDarkRed,
		Fields:      []chat.Field{chat.TaskField(t)},
	}
	err := update(ctx, s, picked, ephemeral("", []chat.Embed{confirm}, []discordgo.MessageComponent{row(
		button("Remove", discordgo.DangerButton, sess.CustomID(actionConfirm)),
		button("Cancel", discordgo.SecondaryButton, sess.CustomID(actionCancel)),
	)}))
	if err != nil {
		log.ErrorContext(ctx, "Failed to ask for confirmation", "error", err)
		return
	}

	ev, err := sess.Next(ctx)
	if err != nil {
		endSession(ctx, log, s, i.Interaction, msgTimedOut)
		return
	}
	if ev.Action != actionConfirm {
		if err := update(ctx, s, ev.Interaction, ephemeral(msgCancelled, nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to acknowledge cancel", "error", err)
		}
		return
	}

	removed, err := h.deps.Store.Remove(ctx, t)
	if err != nil {
		log.ErrorContext(ctx, "Failed to remove task", "error", err)
		if err := update(ctx, s, ev.Interaction, ephemeral("Failed to save the change. Please try again.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report save failure", "error", err)
		}
		return
	}
	if !removed {
		if err := update(ctx, s, ev.Interaction, ephemeral("This task no longer exists.", nil, nil)); err != nil {
			log.ErrorContext(ctx, "Failed to report missing task", "error", err)
		}
		return
	}
	log.InfoContext(ctx, "Task removed", "task", t.Heading(), "datetime", t.Datetime)

	change := changeEmbed("Task removed", chat.ColorDarkRed, chat.TaskField(t))
	if err := update(ctx, s, ev.Interaction, ephemeral("", []chat.Embed{change}, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to confirm removal", "error", err)
	}
	logEvent(ctx, h.deps, log, i.Interaction, change)
	announceChange(ctx, h.deps, log, s, ev.Interaction, change)
}
