package discord

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// NewSession creates a discordgo session for a bot token. The session is not
// opened.
func NewSession(token string, logger *slog.Logger) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "discord_session")

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	log.Info("Discord session created")
	return s, nil
}

// RegisterCommands replaces the application's slash commands, for one guild
// when guildID is set and globally otherwise. The session must be open.
func RegisterCommands(s *discordgo.Session, logger *slog.Logger, guildID string, commands []*discordgo.ApplicationCommand) error {
	if s == nil || s.State == nil || s.State.User == nil {
		return errors.New("discord session is not open")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "command_registry")

	appID := s.State.User.ID
	registered, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	if err != nil {
		log.Error("Failed to register commands", "guild_id", guildID, "error", err)
		return fmt.Errorf("failed to register commands: %w", err)
	}

	for _, c := range registered {
		log.Debug("Registered command", "name", c.Name, "id", c.ID)
	}
	log.Info("Registered Discord commands", "count", len(registered), "guild_id", guildID)
	return nil
}
