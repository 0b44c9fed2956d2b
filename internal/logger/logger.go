// Package logger builds the bot's slog logger and the logging adapters for
// interactions and the scheduler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/taskbot/internal/bot/handlers"
)

// ParseLevel maps a config level name to a slog level. Unknown names mean
// info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a logger writing to w (stdout when nil) and installs it
// as the slog default.
func NewLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Middleware logs every interaction before and after its handler runs.
func Middleware(log *slog.Logger) handlers.Middleware {
	return func(next handlers.HandlerFunc) handlers.HandlerFunc {
		return func(ctx context.Context, s handlers.Session, i *discordgo.InteractionCreate) {
			start := time.Now()
			entry := log.With("interaction_id", i.ID, "interaction_type", i.Type.String())

			if i.Member != nil && i.Member.User != nil {
				entry = entry.With("user_id", i.Member.User.ID, "guild_id", i.GuildID)
			} else if i.User != nil {
				entry = entry.With("user_id", i.User.ID)
			}

			switch i.Type {
			case discordgo.InteractionApplicationCommand:
				entry = entry.With("command", i.ApplicationCommandData().Name)
			case discordgo.InteractionMessageComponent:
				entry = entry.With("custom_id", i.MessageComponentData().CustomID)
			case discordgo.InteractionModalSubmit:
				entry = entry.With("custom_id", i.ModalSubmitData().CustomID)
			}

			entry.DebugContext(ctx, "Processing interaction")
			next(ctx, s, i)
			entry.InfoContext(ctx, "Finished processing interaction", "duration", time.Since(start))
		}
	}
}

type gocronLogger struct {
	log *slog.Logger
}

// NewGocronLogger adapts log for gocron. gocron's own info messages are
// logged at debug level.
//
//nolint:ireturn // gocron.WithLogger takes the interface
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	return gocronLogger{log: log.With("library", "gocron")}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Debug(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
