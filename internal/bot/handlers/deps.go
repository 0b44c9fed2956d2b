package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/reminder"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/store"
)

// HandlerFunc handles one interaction.
type HandlerFunc func(ctx context.Context, s Session, i *discordgo.InteractionCreate)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Session is the part of *discordgo.Session the handlers use.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Loops reports when a scheduled loop runs next.
type Loops interface {
	NextRun(name string) (time.Time, bool)
}

// HandlerDeps provides dependencies for interaction handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Store    *store.Store
	Reminder *reminder.Engine
	Gateway  chat.Gateway
	Sessions *session.Manager
	Clock    clockwork.Clock
	Location *time.Location
	Loops    Loops
}
