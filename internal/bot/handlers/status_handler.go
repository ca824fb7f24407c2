package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/group-digest-bot/internal/scheduler"
)

// NewStatusHandler returns the handler for the /digest_status command.
func NewStatusHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return statusHandler{deps}.Handle
}

type statusHandler struct {
	deps HandlerDeps
}

func (h statusHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "status")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	group, err := h.deps.Store.GetGroupConfig(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load group config", "chat_id", chatID, "error", err)
		h.reply(ctx, b, chatID, "Sorry, could not read the group status.")
		return
	}

	var sb strings.Builder
	if group == nil || !group.Enabled {
		sb.WriteString("Digests: disabled\n")
	} else {
		sb.WriteString("Digests: enabled\n")
		days := h.deps.Config.Analysis.Days
		if group.AnalysisDays > 0 {
			days = group.AnalysisDays
		}
		fmt.Fprintf(&sb, "Window: last %d day(s)\n", days)
		if group.LastRunAt.Valid {
			fmt.Fprintf(&sb, "Last digest: %s\n", group.LastRunAt.Time.Format("2006-01-02 15:04"))
		} else {
			sb.WriteString("Last digest: never\n")
		}
	}

	switch h.deps.Scheduler.Status(chatID) {
	case scheduler.StatusRunning:
		sb.WriteString("A digest is being generated right now.")
	case scheduler.StatusCoolingDown:
		fmt.Fprintf(&sb, "Next digest possible in %s.",
			h.deps.Scheduler.CooldownRemaining(chatID).Round(time.Second))
	default:
		sb.WriteString("No digest in progress.")
	}

	h.reply(ctx, b, chatID, sb.String())
}

func (h statusHandler) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send status reply", "chat_id", chatID, "error", err)
	}
}
