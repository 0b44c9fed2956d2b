// Package main contains the entrypoint for the Discord task bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/taskbot/internal/backup"
	"github.com/edgard/taskbot/internal/bot"
	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/chat/discord"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/reminder"
	"github.com/edgard/taskbot/internal/resilience"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/store"
	"github.com/edgard/taskbot/internal/warning"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(os.Stdout, cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	loc, err := cfg.Schedule.Location()
	if err != nil {
		log.Error("Invalid timezone", "timezone", cfg.Schedule.Timezone, "error", err)
		return 1
	}

	db, err := database.Open(cfg.Storage.DBPath, log)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Storage.DBPath, "error", err)
		return 1
	}
	defer database.Close(db, log)

	blobs := database.NewBlobStore(db, cfg.Storage.Key, cfg.Storage.LegacyFile, log)
	st, err := store.Open(ctx, blobs, log)
	if err != nil {
		log.Error("Failed to load bot state", "error", err)
		return 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPromMetrics(registry)

	dg, err := discord.NewSession(cfg.Discord.Token, log)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return 1
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "discord",
		MaxFailures: cfg.Discord.BreakerFailures,
		Timeout:     cfg.Discord.RequestTimeout,
		Logger:      log,
	})
	gw := discord.New(dg, breaker, log)

	clock := clockwork.NewRealClock()
	reminders := reminder.New(st, gw, loc, log, rec)

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Clock:    clock,
		Store:    st,
		Gateway:  gw,
		Reminder: reminders,
		Warning:  warning.New(st, gw, log, rec),
		Backup:   backup.New(st, gw, loc, log, rec),
		DB:       db,
		Retry:    cfg.Scheduler.Retry,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, loc, clock, rec, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Store:    st,
		Reminder: reminders,
		Gateway:  gw,
		Sessions: session.NewManager(clock, log),
		Clock:    clock,
		Location: loc,
		Loops:    sched,
	}
	registered := handlers.RegisterAllCommands(hDeps)
	router := handlers.NewRouter(hDeps, registered, logger.Middleware(log))

	app := bot.NewBot(log, cfg, dg, router, handlers.Commands(registered), st, sched, registry)

	log.Info("Starting bot...", "timezone", loc.String())
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
