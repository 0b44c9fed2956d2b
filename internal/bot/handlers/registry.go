package handlers

import (
	"sort"

	"github.com/bwmarrin/discordgo"
)

// RegisteredHandler is a slash command with its handler and middleware.
type RegisteredHandler struct {
	Command    *discordgo.ApplicationCommand
	Handler    HandlerFunc
	Middleware []Middleware
}

func ptr[T any](v T) *T { return &v }

func channelOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  description,
		Required:     required,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

// RegisterAllCommands returns every slash command keyed by name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	manageServer := ptr(int64(discordgo.PermissionManageServer))
	guildOnly := ptr(false)
	admin := []Middleware{GuildOnly(deps), RequirePermission(deps, discordgo.PermissionManageServer)}

	handlers["help"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{Name: "help", Description: "Show what the bot can do"},
		Handler: NewHelpHandler(deps),
	}

	handlers["add_task"] = RegisteredHandler{
		Command:    &discordgo.ApplicationCommand{Name: "add_task", Description: "Add a task", DMPermission: guildOnly},
		Handler:    NewAddTaskHandler(deps),
		Middleware: []Middleware{GuildOnly(deps)},
	}
	handlers["remove_task"] = RegisteredHandler{
		Command:    &discordgo.ApplicationCommand{Name: "remove_task", Description: "Remove a task", DMPermission: guildOnly},
		Handler:    NewRemoveTaskHandler(deps),
		Middleware: []Middleware{GuildOnly(deps)},
	}
	handlers["edit_task"] = RegisteredHandler{
		Command:    &discordgo.ApplicationCommand{Name: "edit_task", Description: "Edit a task", DMPermission: guildOnly},
		Handler:    NewEditTaskHandler(deps),
		Middleware: []Middleware{GuildOnly(deps)},
	}

	handlers["set_ping_channel"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "set_ping_channel",
			Description:              "Set the channel for daily reminders",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
			Options:                  []*discordgo.ApplicationCommandOption{channelOption("Defaults to this channel", false)},
		},
		Handler:    NewSetPingChannelHandler(deps),
		Middleware: admin,
	}
	handlers["set_ping_role"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "set_ping_role",
			Description:              "Set the role mentioned by reminders",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "Role to mention",
				Required:    true,
			}},
		},
		Handler:    NewSetPingRoleHandler(deps),
		Middleware: admin,
	}
	handlers["stop_ping"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "stop_ping",
			Description:              "Mute daily reminders until a date",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "First day reminders resume (YYYY-MM-DD)",
				Required:    true,
			}},
		},
		Handler:    NewStopPingHandler(deps),
		Middleware: admin,
	}
	handlers["resume_ping"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "resume_ping",
			Description:              "Resume daily reminders",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
		},
		Handler:    NewResumePingHandler(deps),
		Middleware: admin,
	}
	handlers["set_log_channel"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "set_log_channel",
			Description:              "Set the channel for logs and backups",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
			Options:                  []*discordgo.ApplicationCommandOption{channelOption("Defaults to this channel", false)},
		},
		Handler:    NewSetLogChannelHandler(deps),
		Middleware: admin,
	}
	handlers["deploy_panel"] = RegisteredHandler{
		Command: &discordgo.ApplicationCommand{
			Name:                     "deploy_panel",
			Description:              "Post the task panel",
			DefaultMemberPermissions: manageServer,
			DMPermission:             guildOnly,
			Options:                  []*discordgo.ApplicationCommandOption{channelOption("Defaults to this channel", false)},
		},
		Handler:    NewDeployPanelHandler(deps),
		Middleware: admin,
	}

	handlers["enable_warn"] = RegisteredHandler{
		Command:    &discordgo.ApplicationCommand{Name: "enable_warn", Description: "Get a DM one hour before homework is due"},
		Handler:    NewWarnHandler(deps, true),
		Middleware: []Middleware{DMOnly(deps)},
	}
	handlers["disable_warn"] = RegisteredHandler{
		Command:    &discordgo.ApplicationCommand{Name: "disable_warn", Description: "Stop homework deadline DMs"},
		Handler:    NewWarnHandler(deps, false),
		Middleware: []Middleware{DMOnly(deps)},
	}

	return handlers
}

// Commands lists the application commands of handlers sorted by name.
func Commands(handlers map[string]RegisteredHandler) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(handlers))
	for _, h := range handlers {
		cmds = append(cmds, h.Command)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}
