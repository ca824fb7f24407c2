package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/config"
	"github.com/group-digest-bot/internal/database"
	"github.com/group-digest-bot/internal/llm"
	"github.com/group-digest-bot/internal/report"
	"github.com/group-digest-bot/internal/scheduler"
)

// ErrNotEnoughMessages indicates the window held fewer messages than the
// configured minimum for a meaningful digest.
var ErrNotEnoughMessages = errors.New("not enough messages for analysis")

// Sender is the outbound Telegram surface the pipeline needs; *tgbot.Bot
// satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Pipeline executes one full digest run for a group: fetch, window, analyze,
// record, render, deliver. It is the scheduler's RunFunc.
type Pipeline struct {
	cfg      *config.Config
	store    database.Store
	analyzer *analysis.Analyzer
	sender   Sender
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewPipeline wires a pipeline over the store, analyzer, and outbound sender.
func NewPipeline(cfg *config.Config, store database.Store, analyzer *analysis.Analyzer, sender Sender, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		sender:   sender,
		logger:   logger.With("component", "pipeline"),
		nowFunc:  time.Now,
	}
}

// Run performs one digest run. An explicit days argument beats the group's
// stored window, which beats the file-level default. The digest is posted to
// the group on success; a delivery failure still returns the computed result
// alongside the error.
func (p *Pipeline) Run(ctx context.Context, group *database.GroupConfig, trigger scheduler.Trigger, days int) (*analysis.Result, error) {
	if days <= 0 {
		days = p.cfg.Analysis.Days
		if group.AnalysisDays > 0 {
			days = group.AnalysisDays
		}
	}
	maxMessages := p.cfg.Analysis.MaxMessages
	if group.MaxMessages > 0 {
		maxMessages = group.MaxMessages
	}

	now := p.nowFunc()
	since := now.AddDate(0, 0, -days)

	messages, err := p.store.GetMessagesSince(ctx, group.ChatID, since, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrAdapterUnavailable, err)
	}

	window, err := analysis.BuildWindow(messages, days, maxMessages, now)
	if err != nil {
		return nil, err
	}
	if len(window.Messages) < p.cfg.Analysis.MinMessages {
		return nil, fmt.Errorf("%w: %d of %d required",
			ErrNotEnoughMessages, len(window.Messages), p.cfg.Analysis.MinMessages)
	}

	var opts llm.InvokeOptions
	if group.ModelOverride.Valid && group.ModelOverride.String != "" {
		opts.Model = group.ModelOverride.String
	}

	result, err := p.analyzer.Analyze(ctx, group.ChatID, window, opts)
	if err != nil {
		return nil, err
	}

	if err := p.store.UpdateGroupLastRun(ctx, group.ChatID, result.GeneratedAt); err != nil {
		p.logger.WarnContext(ctx, "Failed to record last run", "chat_id", group.ChatID, "error", err)
	}

	text := report.Render(result)
	if _, err := p.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: group.ChatID,
		Text:   text,
	}); err != nil {
		p.logger.ErrorContext(ctx, "Failed to deliver digest", "chat_id", group.ChatID, "error", err)
		return result, fmt.Errorf("delivering digest: %w", err)
	}

	p.logger.InfoContext(ctx, "Digest delivered",
		"chat_id", group.ChatID, "trigger", trigger, "degraded", result.Degraded())
	return result, nil
}
