package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/task"
)

func option(i *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// channelOrCurrent returns the "channel" option, or the channel the command
// was used in.
func channelOrCurrent(i *discordgo.InteractionCreate) string {
	if opt := option(i, "channel"); opt != nil {
		return opt.ChannelValue(nil).ID
	}
	return i.ChannelID
}

// settingHandler applies one configuration change and reports it.
type settingHandler struct {
	deps  HandlerDeps
	name  string
	apply func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error)
}

func (h settingHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", h.name, "user_id", userID(i.Interaction))

	summary, err := h.apply(ctx, h.deps, i)
	if err != nil {
		respondError(ctx, log, s, i.Interaction, err)
		return
	}
	log.InfoContext(ctx, "Setting changed", "summary", summary)
	respondText(ctx, log, s, i.Interaction, summary)
	logEvent(ctx, h.deps, log, i.Interaction, chat.Embed{Title: "Settings changed", Description: summary, Color: chat.ColorDarkBlue})
}

// NewSetPingChannelHandler returns a handler for /set_ping_channel.
func NewSetPingChannelHandler(deps HandlerDeps) HandlerFunc {
	return settingHandler{deps: deps, name: "set_ping_channel", apply: func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error) {
		channelID := channelOrCurrent(i)
		if err := deps.Store.SetPingChannel(ctx, channelID); err != nil {
			return "", err
		}
		return "Daily reminders will be posted in " + chat.ChannelMention(channelID) + ".", nil
	}}.Handle
}

// NewSetPingRoleHandler returns a handler for /set_ping_role.
func NewSetPingRoleHandler(deps HandlerDeps) HandlerFunc {
	return settingHandler{deps: deps, name: "set_ping_role", apply: func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error) {
		opt := option(i, "role")
		if opt == nil {
			return "", apperrors.NewValidationError("a role is required", nil)
		}
		roleID := opt.RoleValue(nil, "").ID
		if err := deps.Store.SetPingRole(ctx, roleID); err != nil {
			return "", err
		}
		return "Reminders will mention " + chat.RoleMention(roleID) + ".", nil
	}}.Handle
}

// NewSetLogChannelHandler returns a handler for /set_log_channel.
func NewSetLogChannelHandler(deps HandlerDeps) HandlerFunc {
	return settingHandler{deps: deps, name: "set_log_channel", apply: func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error) {
		channelID := channelOrCurrent(i)
		if err := deps.Store.SetLogChannel(ctx, channelID); err != nil {
			return "", err
		}
		return "Logs and backups will be posted in " + chat.ChannelMention(channelID) + ".", nil
	}}.Handle
}

// NewStopPingHandler returns a handler for /stop_ping. Reminders stay muted
// until the start of the given day.
func NewStopPingHandler(deps HandlerDeps) HandlerFunc {
	return settingHandler{deps: deps, name: "stop_ping", apply: func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error) {
		opt := option(i, "date")
		if opt == nil {
			return "", apperrors.NewValidationError("a date is required", nil)
		}
		until, err := muteUntil(opt.StringValue(), deps.Location)
		if err != nil {
			return "", err
		}
		if err := deps.Store.SetStopPingUntil(ctx, until); err != nil {
			return "", err
		}
		return fmt.Sprintf("Daily reminders are muted until %s.", chat.Timestamp(until, "D")), nil
	}}.Handle
}

// NewResumePingHandler returns a handler for /resume_ping.
func NewResumePingHandler(deps HandlerDeps) HandlerFunc {
	return settingHandler{deps: deps, name: "resume_ping", apply: func(ctx context.Context, deps HandlerDeps, _ *discordgo.InteractionCreate) (string, error) {
		if err := deps.Store.SetStopPingUntil(ctx, deps.Clock.Now()); err != nil {
			return "", err
		}
		return "Daily reminders resumed.", nil
	}}.Handle
}

func muteUntil(date string, loc *time.Location) (time.Time, error) {
	d, err := task.ParseDate(date)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must look like 2024-01-31", err)
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc), nil
}

// NewWarnHandler returns a handler for /enable_warn (enable=true) or
// /disable_warn.
func NewWarnHandler(deps HandlerDeps, enable bool) HandlerFunc {
	name := "disable_warn"
	if enable {
		name = "enable_warn"
	}
	return settingHandler{deps: deps, name: name, apply: func(ctx context.Context, deps HandlerDeps, i *discordgo.InteractionCreate) (string, error) {
		id := userID(i.Interaction)
		if enable {
			added, err := deps.Store.AddWarnUser(ctx, id)
			if err != nil {
				return "", err
			}
			if !added {
				return "Deadline warnings are already on.", nil
			}
			return "You will get a DM one hour before homework is due.", nil
		}
		removed, err := deps.Store.RemoveWarnUser(ctx, id)
		if err != nil {
			return "", err
		}
		if !removed {
			return "Deadline warnings are already off.", nil
		}
		return "Deadline warnings turned off.", nil
	}}.Handle
}
