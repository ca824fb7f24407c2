// Package main contains the entrypoint for the group digest Telegram bot.
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

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/bot"
	"github.com/group-digest-bot/internal/bot/handlers"
	"github.com/group-digest-bot/internal/config"
	"github.com/group-digest-bot/internal/database"
	"github.com/group-digest-bot/internal/llm"
	"github.com/group-digest-bot/internal/logger"
	"github.com/group-digest-bot/internal/scheduler"
	"github.com/group-digest-bot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all application components, starts the bot, handles
// graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set environment variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	transport, err := llm.NewGenaiTransport(ctx, cfg.Gemini.APIKey, cfg.Gemini.Endpoint, log)
	if err != nil {
		log.Error("Failed to initialize Gemini transport", "error", err)
		return 1
	}
	gateway := llm.NewGateway(transport, llm.ProviderConfig{
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		Timeout:     cfg.Gemini.Timeout,
		MaxRetries:  cfg.Gemini.MaxRetries,
		BackoffBase: cfg.Gemini.BackoffBase,
		BackoffMax:  cfg.Gemini.BackoffMax,
	}, log)

	analyzer := analysis.NewAnalyzer(
		analysis.NewStatisticsEngine(cfg.Analysis.StopWords, cfg.Analysis.TopKeywords),
		analysis.NewTopicExtractor(gateway, cfg.Analysis.MaxTopics, log),
		analysis.NewTitleClassifier(gateway, cfg.Analysis.MaxUserTitles, cfg.Analysis.MinMessages, log),
		analysis.NewQuoteExtractor(gateway, cfg.Analysis.MaxGoldenQuotes, log),
		log,
	)

	// The pipeline needs the Telegram bot for delivery and the handlers need
	// the scheduler, so wiring happens in two steps around bot creation.
	var pipeline *bot.Pipeline
	groupScheduler := scheduler.NewGroupScheduler(scheduler.Config{
		Workers:                 int64(cfg.Scheduler.Workers),
		Cooldown:                cfg.Scheduler.Cooldown,
		ManualOverridesCooldown: cfg.Scheduler.ManualOverridesCooldown,
		AllowedGroups:           cfg.Scheduler.AllowedGroups,
	}, store, func(ctx context.Context, group *database.GroupConfig, trigger scheduler.Trigger, days int) (*analysis.Result, error) {
		return pipeline.Run(ctx, group, trigger, days)
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Scheduler: groupScheduler,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewCaptureHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	pipeline = bot.NewPipeline(cfg, store, analyzer, tg, log)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	var cron *scheduler.Cron
	if cfg.Scheduler.Enabled {
		cron, err = scheduler.NewCron(cfg.Scheduler.Schedule, groupScheduler, store.RunSQLMaintenance, log)
		if err != nil {
			log.Error("Failed to create cron scheduler", "error", err)
			return 1
		}
	} else {
		log.Info("Automatic scheduler disabled by configuration")
	}

	app := bot.NewBot(log, cfg, tg, cron)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
