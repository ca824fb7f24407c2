// Package bot implements the core bot functionality, lifecycle management,
// and the digest pipeline for the group digest Telegram bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/group-digest-bot/internal/config"
	"github.com/group-digest-bot/internal/scheduler"
)

// Bot composes the Telegram listener and the cron scheduler and manages their
// lifecycle.
type Bot struct {
	logger *slog.Logger
	cfg    *config.Config
	tgBot  *tgbot.Bot
	cron   *scheduler.Cron
}

// NewBot creates the bot orchestrator. cron may be nil when the automatic
// scheduler is disabled.
func NewBot(logger *slog.Logger, cfg *config.Config, tgBot *tgbot.Bot, cron *scheduler.Cron) *Bot {
	return &Bot{
		logger: logger.With("component", "bot_orchestrator"),
		cfg:    cfg,
		tgBot:  tgBot,
		cron:   cron,
	}
}

// Run starts all components and blocks until the context is canceled or a
// component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.cron != nil {
		g.Go(func() error {
			b.logger.Info("Starting cron scheduler...")
			if err := b.cron.Start(gCtx); err != nil {
				return fmt.Errorf("failed to start cron: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping cron...")

			if err := b.cron.Stop(); err != nil {
				b.logger.Error("Error stopping cron", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
