// Package handlers contains the slash command and component handlers, along
// with their registration and middleware.
package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

const (
	msgNotAuthorized = "You need the Manage Server permission to use this command."
	msgGuildOnly     = "This command can only be used in a server."
	msgDMOnly        = "This command can only be used in direct messages."
)

// RequirePermission stops interactions from members lacking perm.
// Administrators always pass.
func RequirePermission(deps HandlerDeps, perm int64) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
			if i.Member == nil {
				respondText(ctx, deps.Logger, s, i.Interaction, msgGuildOnly)
				return
			}
			granted := i.Member.Permissions
			if granted&discordgo.PermissionAdministrator == 0 && granted&perm != perm {
				log := deps.Logger.With("middleware", "RequirePermission")
				log.WarnContext(ctx, "Unauthorized command attempt",
					"user_id", userID(i.Interaction), "guild_id", i.GuildID, "command", i.ApplicationCommandData().Name)
				respondText(ctx, deps.Logger, s, i.Interaction, msgNotAuthorized)
				return
			}
			next(ctx, s, i)
		}
	}
}

// GuildOnly stops interactions outside a guild.
func GuildOnly(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
			if i.GuildID == "" {
				respondText(ctx, deps.Logger, s, i.Interaction, msgGuildOnly)
				return
			}
			next(ctx, s, i)
		}
	}
}

// DMOnly stops interactions outside direct messages.
func DMOnly(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
			if i.GuildID != "" {
				respondText(ctx, deps.Logger, s, i.Interaction, msgDMOnly)
				return
			}
			next(ctx, s, i)
		}
	}
}

// applyMiddleware wraps handler so that the first middleware is the outermost.
func applyMiddleware(handler HandlerFunc, mw []Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}
