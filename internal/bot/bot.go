// Package bot wires the Discord connection, the interaction router and the
// scheduler together and runs them until shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/chat/discord"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/store"
)

// Bot manages the lifecycle of the bot's components.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	session   *discordgo.Session
	router    *handlers.Router
	commands  []*discordgo.ApplicationCommand
	store     *store.Store
	scheduler *Scheduler
	gatherer  prometheus.Gatherer
}

// NewBot creates the orchestrator. gatherer may be nil when metrics are not
// exposed.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	session *discordgo.Session,
	router *handlers.Router,
	commands []*discordgo.ApplicationCommand,
	store *store.Store,
	scheduler *Scheduler,
	gatherer prometheus.Gatherer,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		session:   session,
		router:    router,
		commands:  commands,
		store:     store,
		scheduler: scheduler,
		gatherer:  gatherer,
	}
}

// Run connects to Discord, registers the slash commands and runs the
// scheduler until ctx is cancelled or a component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	removeHandler := b.router.Attach(gCtx, b.session)
	defer removeHandler()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer func() {
		if err := b.session.Close(); err != nil {
			b.logger.Error("Error closing discord session", "error", err)
		}
	}()

	if err := discord.RegisterCommands(b.session, b.logger, b.cfg.Discord.GuildID, b.commands); err != nil {
		return err
	}
	if ref, ok := b.store.PanelMessage(); ok {
		b.logger.Info("Task panel active", "channel_id", ref.ChannelID, "message_id", ref.MessageID)
	}

	g.Go(func() error {
		if err := b.scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.cfg.Metrics.Addr != "" && b.gatherer != nil {
		g.Go(func() error {
			return metrics.Serve(gCtx, b.cfg.Metrics.Addr, b.gatherer, b.logger)
		})
	}

	b.logger.Info("Bot running. Waiting for shutdown signal or error...")
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
