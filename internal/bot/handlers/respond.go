package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/chat/discord"
	apperrors "github.com/edgard/taskbot/internal/errors"
)

const (
	msgGenericError = "Something went wrong. Please try again later."
	msgExpired      = "This interaction has expired."
	msgCancelled    = "Cancelled."
	msgTimedOut     = "Timed out."
)

// userID returns the id of the user behind an interaction in a guild or a DM.
func userID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func userName(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}

func ephemeral(content string, embeds []chat.Embed, components []discordgo.MessageComponent) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:    content,
		Embeds:     discord.ToEmbeds(embeds),
		Components: components,
		Flags:      discordgo.MessageFlagsEphemeral,
	}
}

// reply answers an interaction with a new ephemeral message.
func reply(ctx context.Context, s Session, i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

// update answers a component or modal interaction by editing the message it
// came from.
func update(ctx context.Context, s Session, i *discordgo.Interaction, data *discordgo.InteractionResponseData) error {
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}, discordgo.WithContext(ctx))
}

// respondText replies with a plain ephemeral message and logs a failure.
func respondText(ctx context.Context, log *slog.Logger, s Session, i *discordgo.Interaction, content string) {
	if err := reply(ctx, s, i, ephemeral(content, nil, nil)); err != nil {
		log.ErrorContext(ctx, "Failed to respond to interaction", "error", err, "interaction_id", i.ID)
	}
}

// respondError shows the user what went wrong. Configuration problems are
// explained; anything else gets a generic message.
func respondError(ctx context.Context, log *slog.Logger, s Session, i *discordgo.Interaction, err error) {
	content := msgGenericError
	switch apperrors.Code(err) {
	case apperrors.CodeConfigMissing:
		content = "Not configured yet: " + err.Error() + ". Ask a server manager to set it up."
	case apperrors.CodeValidation, apperrors.CodeUnauthorized:
		content = err.Error()
	}
	log.WarnContext(ctx, "Interaction failed", "error", err, "code", apperrors.Code(err))
	respondText(ctx, log, s, i, content)
}

// endSession replaces a session message with a closing note. The original
// interaction token may already have expired, so failures are only logged.
func endSession(ctx context.Context, log *slog.Logger, s Session, i *discordgo.Interaction, note string) {
	empty := []discordgo.MessageComponent{}
	if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &note, Components: &empty}, discordgo.WithContext(ctx)); err != nil {
		log.DebugContext(ctx, "Could not close session message", "error", err, "interaction_id", i.ID)
	}
}

func button(label string, style discordgo.ButtonStyle, customID string) discordgo.Button {
	return discordgo.Button{Label: label, Style: style, CustomID: customID}
}

func row(components ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: components}
}
