package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/group-digest-bot/internal/database"
)

// NewEnableHandler returns the handler for the /digest_on command.
// Requires admin privileges (enforced by middleware).
func NewEnableHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return toggleHandler{deps: deps, enable: true}.Handle
}

// NewDisableHandler returns the handler for the /digest_off command.
// Disabling a group also cancels its in-flight run, if any.
func NewDisableHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return toggleHandler{deps: deps, enable: false}.Handle
}

type toggleHandler struct {
	deps   HandlerDeps
	enable bool
}

func (h toggleHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "toggle")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if update.Message.Chat.Type != models.ChatTypeGroup && update.Message.Chat.Type != models.ChatTypeSupergroup {
		h.reply(ctx, b, chatID, "This command only works in group chats.")
		return
	}

	group, err := h.deps.Store.GetGroupConfig(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load group config", "chat_id", chatID, "error", err)
		h.reply(ctx, b, chatID, "Sorry, updating the group settings failed.")
		return
	}
	if group == nil {
		group = &database.GroupConfig{ChatID: chatID}
	}
	group.Enabled = h.enable

	if err := h.deps.Store.UpsertGroupConfig(ctx, group); err != nil {
		log.ErrorContext(ctx, "Failed to update group config", "chat_id", chatID, "error", err)
		h.reply(ctx, b, chatID, "Sorry, updating the group settings failed.")
		return
	}

	if h.enable {
		log.InfoContext(ctx, "Digests enabled", "chat_id", chatID)
		h.reply(ctx, b, chatID, "Digests enabled for this group. Use /digest to generate one.")
		return
	}

	if h.deps.Scheduler.Cancel(chatID) {
		log.InfoContext(ctx, "Canceled in-flight run on disable", "chat_id", chatID)
	}
	log.InfoContext(ctx, "Digests disabled", "chat_id", chatID)
	h.reply(ctx, b, chatID, "Digests disabled for this group.")
}

func (h toggleHandler) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send toggle reply", "chat_id", chatID, "error", err)
	}
}
