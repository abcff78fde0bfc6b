// Package main contains the entrypoint for the PulseWatch service: a
// Telegram support-account listener feeding the chat session engine, with
// a web dashboard for live and historical statistics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"

	"github.com/pulseai/pulsewatch/internal/app"
	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/config"
	"github.com/pulseai/pulsewatch/internal/database"
	"github.com/pulseai/pulsewatch/internal/logger"
	"github.com/pulseai/pulsewatch/internal/telegram"
	"github.com/pulseai/pulsewatch/internal/web"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and handles
// graceful shutdown, returning an exit code (0 success, 1 failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	tracker, err := chat.NewTracker(ctx, store, cfg.Chat.SessionTimeout, log)
	if err != nil {
		log.Error("Failed to initialize chat session table", "error", err)
		return 1
	}

	filter := chat.NewFilter(chat.DefaultFilterConfig(), log)
	if cfg.Chat.FilterPath != "" {
		if err := filter.LoadFile(cfg.Chat.FilterPath); err != nil {
			log.Error("Failed to load filter configuration", "path", cfg.Chat.FilterPath, "error", err)
			return 1
		}
	}

	hub := web.NewHub(log)
	reporter := chat.NewReporter(store, tracker)
	notifier := app.NewEventBroadcaster(reporter, hub, log)
	ingestor := chat.NewIngestor(store, tracker, filter, cfg.Chat.Farewells, notifier, log)

	listener, err := telegram.NewListener(
		cfg.Telegram.Token,
		cfg.Telegram.OperatorID,
		ingestor,
		log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
	)
	if err != nil {
		log.Error("Failed to create Telegram listener", "error", err)
		return 1
	}

	webServer := web.NewServer(&cfg.Web, log, store, reporter, ingestor, filter, cfg.Chat.FilterPath, hub)

	taskDeps := app.TaskDeps{
		Logger:   log,
		Store:    store,
		Reporter: reporter,
		Hub:      hub,
	}
	scheduler, err := app.NewScheduler(log, &cfg.Scheduler, app.RegisterAllTasks(taskDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.New(log, listener, webServer, hub, scheduler)

	log.Info("Starting PulseWatch...")
	if err := application.Run(ctx); err != nil {
		log.Error("Application stopped due to error", "error", err)
		return 1
	}

	log.Info("PulseWatch stopped gracefully.")
	return 0
}
