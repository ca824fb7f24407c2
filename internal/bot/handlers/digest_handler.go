package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/bot"
	"github.com/group-digest-bot/internal/scheduler"
)

// maxDigestDays bounds the optional /digest day argument.
const maxDigestDays = 30

// NewDigestHandler returns the handler for the /digest command, which
// triggers a manual analysis run for the current group. An optional argument
// overrides the analysis window: "/digest 3" digests the last three days.
// Requires admin privileges (enforced by middleware).
func NewDigestHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return digestHandler{deps}.Handle
}

type digestHandler struct {
	deps HandlerDeps
}

// Handle admits and runs a manual digest. The pipeline posts the digest
// itself; this handler only reports admission rejections and run failures.
func (h digestHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "digest")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if update.Message.Chat.Type != models.ChatTypeGroup && update.Message.Chat.Type != models.ChatTypeSupergroup {
		h.reply(ctx, b, chatID, "Digests are only available in group chats.")
		return
	}

	days, ok := parseDaysArg(update.Message.Text)
	if !ok {
		h.reply(ctx, b, chatID, fmt.Sprintf("Usage: /digest [days], with days between 1 and %d.", maxDigestDays))
		return
	}

	log.InfoContext(ctx, "Manual digest requested",
		"chat_id", chatID, "user_id", update.Message.From.ID, "days", days)
	h.reply(ctx, b, chatID, "Working on the digest...")

	_, err := h.deps.Scheduler.Trigger(ctx, chatID, scheduler.TriggerManual, days)
	if err == nil {
		return
	}

	log.WarnContext(ctx, "Manual digest rejected or failed", "chat_id", chatID, "error", err)
	h.reply(ctx, b, chatID, rejectionText(err, h.deps))
}

// parseDaysArg extracts the optional day-count argument from the command
// text. Zero means "use the configured default".
func parseDaysArg(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return 0, true
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil || days < 1 || days > maxDigestDays {
		return 0, false
	}
	return days, true
}

func (h digestHandler) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}

// rejectionText maps pipeline and admission errors to user-facing replies.
func rejectionText(err error, deps HandlerDeps) string {
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return "A digest for this group is already being generated."
	case errors.Is(err, scheduler.ErrCoolingDown):
		return "A digest was generated recently. Please try again later."
	case errors.Is(err, scheduler.ErrGroupNotEnabled):
		return "Digests are not enabled for this group. An admin can enable them with /digest_on."
	case errors.Is(err, analysis.ErrEmptyWindow):
		return "There are no messages to analyze yet."
	case errors.Is(err, bot.ErrNotEnoughMessages):
		return fmt.Sprintf("Not enough messages for a digest yet (need at least %d).",
			deps.Config.Analysis.MinMessages)
	default:
		return "Sorry, generating the digest failed. Please try again later."
	}
}
