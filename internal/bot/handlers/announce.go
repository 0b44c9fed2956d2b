package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/reminder"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/task"
)

// changeEmbed describes a task mutation for the user, the log channel and
// the update-reply.
func changeEmbed(title string, color int, fields ...chat.Field) chat.Embed {
	return chat.Embed{Title: title, Color: color, Fields: fields}
}

func labeledTaskField(label string, t task.Task) chat.Field {
	f := chat.TaskField(t)
	f.Name = label + ": " + f.Name
	return f
}

// announceChange threads an update-reply under the latest daily reminder
// when it no longer matches, with mentions suppressed, then asks whether the
// ping role should be notified. Without an answer the update stays quiet.
func announceChange(ctx context.Context, deps HandlerDeps, log *slog.Logger, s Session, last *discordgo.Interaction, change chat.Embed) {
	reply, err := deps.Reminder.Update(ctx, deps.Clock.Now(), reminder.UpdateOptions{})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeConfigMissing) {
			log.DebugContext(ctx, "Skipping update-reply", "reason", err)
			return
		}
		log.ErrorContext(ctx, "Failed to post update-reply", "error", err)
		return
	}
	if reply == nil {
		return
	}

	sess := deps.Sessions.Open(userID(last), session.AnnounceTimeout)
	defer sess.Close()

	_, err = s.FollowupMessageCreate(last, true, &discordgo.WebhookParams{
		Content: "Today's reminder was updated. Announce the change?",
		Flags:   discordgo.MessageFlagsEphemeral,
		Components: []discordgo.MessageComponent{row(
			button("Announce", discordgo.PrimaryButton, sess.CustomID(actionAnnounce)),
			button("Don't announce", discordgo.SecondaryButton, sess.CustomID(actionSilent)),
		)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.ErrorContext(ctx, "Failed to ask about announcing", "error", err)
		return
	}

	ev, err := sess.Next(ctx)
	if err != nil {
		log.InfoContext(ctx, "Announce prompt ended without answer", "reason", err)
		return
	}

	content := "The change was not announced."
	if ev.Action == actionAnnounce {
		if _, err := deps.Reminder.Announce(ctx, reply, change); err != nil {
			log.ErrorContext(ctx, "Failed to announce change", "error", err)
			content = "Failed to announce the change."
		} else {
			content = "The change was announced."
		}
	}
	if err := update(ctx, s, ev.Interaction, ephemeral(content, nil, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to acknowledge announce choice", "error", err)
	}
}

// logEvent posts an embed to the log channel when one is set.
func logEvent(ctx context.Context, deps HandlerDeps, log *slog.Logger, i *discordgo.Interaction, embed chat.Embed) {
	channelID, ok := deps.Store.LogChannel()
	if !ok {
		return
	}
	embed.Author = &chat.Author{Name: userName(i)}
	embed.Timestamp = deps.Clock.Now()
	if _, err := deps.Gateway.Send(ctx, channelID, chat.OutgoingMessage{Embeds: []chat.Embed{embed}}); err != nil {
		log.ErrorContext(ctx, "Failed to write to log channel", "error", err, "channel_id", channelID)
	}
}
